package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	AuthConfig       AuthConfig       `json:"auth"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	VaultConfig      VaultConfig      `json:"vault"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	RiskConfig       RiskConfig       `json:"risk"`
	SupervisorConfig SupervisorConfig `json:"supervisor"`
	NewsConfig       NewsConfig       `json:"news"`
	NotifyConfig     NotifyConfig     `json:"notify"`
	PaperConfig      PaperConfig      `json:"paper"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ProductionMode  bool   `json:"production_mode"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// AuthConfig holds operator authentication configuration
type AuthConfig struct {
	Enabled              bool          `json:"enabled"`
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	Operators            []Operator    `json:"operators"`
}

// Operator is a statically configured operator account.
// PasswordHash is a bcrypt hash; plaintext passwords never appear in config.
type Operator struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"` // "admin" or "observer"
	PasswordHash string `json:"password_hash"`
}

// DatabaseConfig holds PostgreSQL configuration for the decision audit
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for pending-trade state
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // Human-readable console output instead of JSON
}

// RiskConfig holds position sizing and gating configuration
type RiskConfig struct {
	CashReservePercent   float64 `json:"cash_reserve_percent"`    // Equity % kept out of play
	MaxTradeValue        float64 `json:"max_trade_value"`         // Per-trade notional cap in USD
	MaxCollateral        float64 `json:"max_collateral"`          // Cap on collateral held against short legs
	MaxOpenPositions     int     `json:"max_open_positions"`      // Maximum concurrent positions
	MaxSymbolExposure    float64 `json:"max_symbol_exposure"`     // Max notional per symbol in USD
	MaxDailyLoss         float64 `json:"max_daily_loss"`          // Max realized daily loss in USD before halt
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`  // Breaker trip threshold
	BreakerCooldownMins  int     `json:"breaker_cooldown_minutes"`
}

// SupervisorConfig holds approval workflow configuration
type SupervisorConfig struct {
	Mode           string `json:"mode"`            // "auto", "approval", or "paused"
	PendingTTLMins int    `json:"pending_ttl_minutes"`
	SweepIntervalS int    `json:"sweep_interval_seconds"`
}

// NewsConfig holds headline dedup configuration
type NewsConfig struct {
	Enabled             bool     `json:"enabled"`
	PollIntervalSeconds int      `json:"poll_interval_seconds"`
	SimilarityThreshold float64  `json:"similarity_threshold"` // Jaccard threshold for duplicate headlines
	RetentionMinutes    int      `json:"retention_minutes"`    // How long a story cluster stays active
	Symbols             []string `json:"symbols"`
}

// NotifyConfig holds notification dispatch configuration
type NotifyConfig struct {
	Enabled          bool            `json:"enabled"`
	BatchSize        int             `json:"batch_size"`
	FlushIntervalS   int             `json:"flush_interval_seconds"`
	RatePerMinute    int             `json:"rate_per_minute"`
	SymbolRatePerMin int             `json:"symbol_rate_per_minute"`
	DedupeWindowS    int             `json:"dedupe_window_seconds"`
	QueueSize        int             `json:"queue_size"`
	Channels         []ChannelConfig `json:"channels"`
}

// PaperConfig holds simulated execution settings
type PaperConfig struct {
	StartingCash float64 `json:"starting_cash"`
}

// ChannelConfig describes one webhook delivery channel.
// WebhookURL may be empty when the URL is resolved from Vault at startup.
type ChannelConfig struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects values that would otherwise fail silently at runtime
func validate(cfg *Config) error {
	for _, op := range cfg.AuthConfig.Operators {
		switch op.Role {
		case "admin", "observer":
		default:
			return fmt.Errorf("operator %q has unknown role %q (want admin or observer)", op.ID, op.Role)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Credentials (DB password, JWT secret, Vault token) are expected from the
// environment in deployments; the config file carries only non-secrets.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"

	// Auth config
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.AuthConfig.Enabled = v == "true"
	}
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.AuthConfig.AccessTokenDuration)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", cfg.AuthConfig.RefreshTokenDuration)

	// Database config
	if v := os.Getenv("DB_ENABLED"); v != "" {
		cfg.DatabaseConfig.Enabled = v == "true"
	}
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Vault config
	if v := os.Getenv("VAULT_ENABLED"); v != "" {
		cfg.VaultConfig.Enabled = v == "true"
	}
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_CONSOLE"); v != "" {
		cfg.LoggingConfig.Console = v == "true"
	}

	// Risk config
	cfg.RiskConfig.CashReservePercent = getEnvFloatOrDefault("RISK_CASH_RESERVE_PERCENT", cfg.RiskConfig.CashReservePercent)
	cfg.RiskConfig.MaxTradeValue = getEnvFloatOrDefault("RISK_MAX_TRADE_VALUE", cfg.RiskConfig.MaxTradeValue)
	cfg.RiskConfig.MaxCollateral = getEnvFloatOrDefault("RISK_MAX_COLLATERAL", cfg.RiskConfig.MaxCollateral)
	cfg.RiskConfig.MaxOpenPositions = getEnvIntOrDefault("RISK_MAX_OPEN_POSITIONS", cfg.RiskConfig.MaxOpenPositions)
	cfg.RiskConfig.MaxDailyLoss = getEnvFloatOrDefault("RISK_MAX_DAILY_LOSS", cfg.RiskConfig.MaxDailyLoss)

	// Supervisor config
	cfg.SupervisorConfig.Mode = getEnvOrDefault("SUPERVISOR_MODE", cfg.SupervisorConfig.Mode)
	cfg.SupervisorConfig.PendingTTLMins = getEnvIntOrDefault("SUPERVISOR_PENDING_TTL_MINUTES", cfg.SupervisorConfig.PendingTTLMins)

	// News config
	if v := os.Getenv("NEWS_ENABLED"); v != "" {
		cfg.NewsConfig.Enabled = v == "true"
	}

	// Notify config
	if v := os.Getenv("NOTIFY_ENABLED"); v != "" {
		cfg.NotifyConfig.Enabled = v == "true"
	}

	// Paper config
	cfg.PaperConfig.StartingCash = getEnvFloatOrDefault("PAPER_STARTING_CASH", cfg.PaperConfig.StartingCash)
}

// applyDefaults fills zero values with safe defaults
func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
	if cfg.AuthConfig.AccessTokenDuration == 0 {
		cfg.AuthConfig.AccessTokenDuration = 15 * time.Minute
	}
	if cfg.AuthConfig.RefreshTokenDuration == 0 {
		cfg.AuthConfig.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.VaultConfig.Address == "" {
		cfg.VaultConfig.Address = "http://localhost:8200"
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "supervisor/secrets"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.RiskConfig.CashReservePercent == 0 {
		cfg.RiskConfig.CashReservePercent = 20.0
	}
	if cfg.RiskConfig.MaxTradeValue == 0 {
		cfg.RiskConfig.MaxTradeValue = 2000.0
	}
	if cfg.RiskConfig.MaxCollateral == 0 {
		cfg.RiskConfig.MaxCollateral = 5000.0
	}
	if cfg.RiskConfig.MaxOpenPositions == 0 {
		cfg.RiskConfig.MaxOpenPositions = 5
	}
	if cfg.RiskConfig.MaxSymbolExposure == 0 {
		cfg.RiskConfig.MaxSymbolExposure = 4000.0
	}
	if cfg.RiskConfig.MaxDailyLoss == 0 {
		cfg.RiskConfig.MaxDailyLoss = 1000.0
	}
	if cfg.RiskConfig.MaxConsecutiveLosses == 0 {
		cfg.RiskConfig.MaxConsecutiveLosses = 4
	}
	if cfg.RiskConfig.BreakerCooldownMins == 0 {
		cfg.RiskConfig.BreakerCooldownMins = 30
	}
	if cfg.SupervisorConfig.Mode == "" {
		cfg.SupervisorConfig.Mode = "approval"
	}
	if cfg.SupervisorConfig.PendingTTLMins == 0 {
		cfg.SupervisorConfig.PendingTTLMins = 15
	}
	if cfg.SupervisorConfig.SweepIntervalS == 0 {
		cfg.SupervisorConfig.SweepIntervalS = 30
	}
	if cfg.NewsConfig.PollIntervalSeconds == 0 {
		cfg.NewsConfig.PollIntervalSeconds = 60
	}
	if cfg.NewsConfig.SimilarityThreshold == 0 {
		cfg.NewsConfig.SimilarityThreshold = 0.6
	}
	if cfg.NewsConfig.RetentionMinutes == 0 {
		cfg.NewsConfig.RetentionMinutes = 360
	}
	if cfg.NotifyConfig.BatchSize == 0 {
		cfg.NotifyConfig.BatchSize = 5
	}
	if cfg.NotifyConfig.FlushIntervalS == 0 {
		cfg.NotifyConfig.FlushIntervalS = 30
	}
	if cfg.NotifyConfig.RatePerMinute == 0 {
		cfg.NotifyConfig.RatePerMinute = 20
	}
	if cfg.NotifyConfig.SymbolRatePerMin == 0 {
		cfg.NotifyConfig.SymbolRatePerMin = 6
	}
	if cfg.NotifyConfig.DedupeWindowS == 0 {
		cfg.NotifyConfig.DedupeWindowS = 60
	}
	if cfg.NotifyConfig.QueueSize == 0 {
		cfg.NotifyConfig.QueueSize = 256
	}
	if cfg.PaperConfig.StartingCash == 0 {
		cfg.PaperConfig.StartingCash = 10000.0
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "http://localhost:5173",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		AuthConfig: AuthConfig{
			Enabled:              true,
			JWTSecret:            "change_me",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
			Operators: []Operator{
				{ID: "op-1", Name: "admin", Role: "admin", PasswordHash: ""},
			},
		},
		DatabaseConfig: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			User:     "supervisor",
			Database: "supervisor",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled: false,
			Address: "localhost:6379",
		},
		LoggingConfig: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		RiskConfig: RiskConfig{
			CashReservePercent:   20.0,
			MaxTradeValue:        2000.0,
			MaxCollateral:        5000.0,
			MaxOpenPositions:     5,
			MaxSymbolExposure:    4000.0,
			MaxDailyLoss:         1000.0,
			MaxConsecutiveLosses: 4,
			BreakerCooldownMins:  30,
		},
		SupervisorConfig: SupervisorConfig{
			Mode:           "approval",
			PendingTTLMins: 15,
			SweepIntervalS: 30,
		},
		NewsConfig: NewsConfig{
			Enabled:             true,
			PollIntervalSeconds: 60,
			SimilarityThreshold: 0.6,
			RetentionMinutes:    360,
			Symbols:             []string{"AAPL", "TSLA", "SPY"},
		},
		NotifyConfig: NotifyConfig{
			Enabled:        true,
			BatchSize:      5,
			FlushIntervalS: 30,
			RatePerMinute:  20,
			Channels: []ChannelConfig{
				{Name: "ops", Enabled: false, WebhookURL: ""},
			},
		},
		PaperConfig: PaperConfig{
			StartingCash: 10000.0,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
