package auth

// OperatorClaims carries the operator identity inside a token
type OperatorClaims struct {
	OperatorID string `json:"operator_id"`
	Name       string `json:"name"`
	Role       string `json:"role"` // "admin" or "observer"
}

// IsAdmin reports whether the operator may approve and reject trades
func (c OperatorClaims) IsAdmin() bool {
	return c.Role == "admin"
}

// TokenPair bundles access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// LoginRequest is the operator login payload
type LoginRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse returns tokens plus the operator identity
type LoginResponse struct {
	Operator OperatorClaims `json:"operator"`
	Tokens   TokenPair      `json:"tokens"`
}

// AuthError is a coded authentication failure
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid operator id or password"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
)
