package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pendergraft/cleanfi/internal/validation"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Security  SecurityConfig  `yaml:"security"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Chain     ChainConfig     `yaml:"chain"`
	Actions   ActionsConfig   `yaml:"actions"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
	IdleTimeout  int    `yaml:"idleTimeout"`  // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string         `yaml:"type"` // "sqlite" or "postgres"
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type string `yaml:"type"` // "none" or "api-key"
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requestsPerMin"`
	BurstSize      int  `yaml:"burstSize"`
	CleanupMinutes int  `yaml:"cleanupMinutes"`
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool `yaml:"filterEnabled"`
	MaxBodySizeKB int  `yaml:"maxBodySizeKB"`
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool     `yaml:"trustProxy"`
	TrustedProxies []string `yaml:"trustedProxies"` // CIDR notation
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
}

// ChainConfig selects the target network and the CleanFi contract on it.
type ChainConfig struct {
	ID              int64  `yaml:"id"`
	RPCURL          string `yaml:"rpcUrl,omitempty"` // overrides the descriptor's endpoint
	ChainsFile      string `yaml:"chainsFile,omitempty"`
	ContractAddress string `yaml:"contractAddress,omitempty"`
}

// ActionsConfig holds the Blink action settings
type ActionsConfig struct {
	Version         string `yaml:"version"`
	Receiver        string `yaml:"receiver"`
	VoteFee         string `yaml:"voteFee"`   // native units, e.g. "0.001"
	VoteStake       string `yaml:"voteStake"` // native units, e.g. "0.1"
	IconPath        string `yaml:"iconPath"`
	StrictParams    bool   `yaml:"strictParams"`
	CacheTTLSeconds int    `yaml:"cacheTTLSeconds"`
	ProofGateway    string `yaml:"proofGateway"`
}

// DefaultReceiver collects vote fees unless VOTE_RECEIVER says otherwise.
const DefaultReceiver = "0x8170Dde13D14E93Af7EDEdcE81db35479630cB8B"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8080),
			Host:         getEnv("HOST", "0.0.0.0"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/cleanfi.db"),
			},
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "api-key"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeKB: getEnvInt("SECURITY_MAX_BODY_SIZE_KB", 64),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Service: getEnv("METRICS_SERVICE", "cleanfi"),
		},
		Chain: ChainConfig{
			ID:              getEnvInt64("CHAIN_ID", 10143),
			RPCURL:          getEnv("CHAIN_RPC_URL", ""),
			ChainsFile:      getEnv("CHAINS_FILE", ""),
			ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
		},
		Actions: ActionsConfig{
			Version:         getEnv("ACTIONS_VERSION", "2.0"),
			Receiver:        getEnv("VOTE_RECEIVER", DefaultReceiver),
			VoteFee:         getEnv("VOTE_FEE", "0.001"),
			VoteStake:       getEnv("VOTE_STAKE", "0.1"),
			IconPath:        getEnv("ACTIONS_ICON_PATH", "/logo.svg"),
			StrictParams:    getEnvBool("ACTIONS_STRICT_PARAMS", false),
			CacheTTLSeconds: getEnvInt("CLEANUP_CACHE_TTL_SECONDS", 15),
			ProofGateway:    getEnv("PROOF_GATEWAY_URL", "https://ipfs.io/ipfs/"),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise surface as broken
// transactions at request time.
func (c *Config) Validate() error {
	if err := validation.ValidateAddress(c.Actions.Receiver); err != nil {
		return fmt.Errorf("VOTE_RECEIVER: %w", err)
	}
	if c.Chain.ContractAddress != "" {
		if err := validation.ValidateAddress(c.Chain.ContractAddress); err != nil {
			return fmt.Errorf("CONTRACT_ADDRESS: %w", err)
		}
	}
	if err := validation.ValidateChainID(c.Chain.ID); err != nil {
		return fmt.Errorf("CHAIN_ID: %w", err)
	}
	if err := validation.ValidateActionVersion(c.Actions.Version); err != nil {
		return fmt.Errorf("ACTIONS_VERSION: %w", err)
	}
	if err := validation.ValidateAmount(c.Actions.VoteFee); err != nil {
		return fmt.Errorf("VOTE_FEE: %w", err)
	}
	if err := validation.ValidateAmount(c.Actions.VoteStake); err != nil {
		return fmt.Errorf("VOTE_STAKE: %w", err)
	}
	if !strings.HasPrefix(c.Actions.IconPath, "/") && !strings.Contains(c.Actions.IconPath, "://") {
		return fmt.Errorf("ACTIONS_ICON_PATH: must be an absolute path or URL")
	}
	if !strings.HasSuffix(c.Actions.ProofGateway, "/") {
		return fmt.Errorf("PROOF_GATEWAY_URL: must end with /")
	}
	switch c.Storage.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("STORAGE_TYPE: unknown storage type %q", c.Storage.Type)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
