package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/SCPrime/ai-Trader-sub001/config"
)

// Service authenticates statically configured operators
type Service struct {
	operators map[string]config.Operator
	jwt       *JWTManager
	dummyHash []byte
}

// NewService creates an auth service from the configured operator list
func NewService(cfg config.AuthConfig) *Service {
	operators := make(map[string]config.Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators[op.ID] = op
	}

	// Compared against for unknown ids so lookups cost the same either way
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("placeholder"), bcrypt.DefaultCost)

	return &Service{
		operators: operators,
		jwt:       NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration, cfg.RefreshTokenDuration),
		dummyHash: dummyHash,
	}
}

// JWT exposes the token manager for middleware wiring
func (s *Service) JWT() *JWTManager {
	return s.jwt
}

// Login verifies credentials against the configured operators and issues
// a token pair
func (s *Service) Login(req LoginRequest) (*LoginResponse, error) {
	op, ok := s.operators[req.OperatorID]
	if !ok {
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	claims := OperatorClaims{
		OperatorID: op.ID,
		Name:       op.Name,
		Role:       op.Role,
	}

	tokens, err := s.jwt.GenerateTokenPair(claims)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Operator: claims,
		Tokens:   *tokens,
	}, nil
}

// HashPassword produces a bcrypt hash for operator provisioning
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
