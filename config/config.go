package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Chain    ChainConfig    `mapstructure:"chain"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // debug, release, test
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SessionConfig describes the identity provider's session tokens.
type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	CookieName string        `mapstructure:"cookie_name"`
	Expiry     time.Duration `mapstructure:"expiry"` // lifetime of tokens minted by the CLI
}

// WebhookConfig authenticates the payment-status reconciliation webhook.
type WebhookConfig struct {
	Secret   string        `mapstructure:"secret"`
	MaxDrift time.Duration `mapstructure:"max_drift"`
	NonceTTL time.Duration `mapstructure:"nonce_ttl"`
}

type PaymentConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	SessionCacheTTL time.Duration `mapstructure:"session_cache_ttl"`
}

type WalletConfig struct {
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	Statement    string        `mapstructure:"statement"`
}

// TokenConfig is an ERC-20 contract accepted for settlement.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Decimals int32  `mapstructure:"decimals"`
}

type TokensConfig struct {
	USDC TokenConfig `mapstructure:"usdc"`
	USDT TokenConfig `mapstructure:"usdt"`
	DAI  TokenConfig `mapstructure:"dai"`
}

// ChainConfig enables on-chain verification when RPCURL is set.
type ChainConfig struct {
	RPCURL string       `mapstructure:"rpc_url"`
	Tokens TokensConfig `mapstructure:"tokens"`
}

// Token returns the contract configured for a currency code.
func (c ChainConfig) Token(currency string) (TokenConfig, bool) {
	switch strings.ToUpper(currency) {
	case "USDC":
		return c.Tokens.USDC, c.Tokens.USDC.Address != ""
	case "USDT":
		return c.Tokens.USDT, c.Tokens.USDT.Address != ""
	case "DAI":
		return c.Tokens.DAI, c.Tokens.DAI.Address != ""
	}
	return TokenConfig{}, false
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LoadEnv loads variables from a .env file if one is present.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: FLOWKORA_.
// Nested keys use underscore: FLOWKORA_DATABASE_HOST, FLOWKORA_SESSION_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "flowkora")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "")
	v.SetDefault("session.cookie_name", "fk_session")
	v.SetDefault("session.expiry", "24h")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.max_drift", "60s")
	v.SetDefault("webhook.nonce_ttl", "120s")
	v.SetDefault("payment.base_url", "http://localhost:3000")
	v.SetDefault("payment.session_cache_ttl", "10m")
	v.SetDefault("wallet.challenge_ttl", "5m")
	v.SetDefault("wallet.statement", "Verify ownership of this address for FlowKora")
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.tokens.usdc.address", "0xaf88d065e77c8cC2239327C5D4Ac6ea7DEcED63B")
	v.SetDefault("chain.tokens.usdc.decimals", 6)
	v.SetDefault("chain.tokens.usdt.address", "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9")
	v.SetDefault("chain.tokens.usdt.decimals", 6)
	v.SetDefault("chain.tokens.dai.address", "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1")
	v.SetDefault("chain.tokens.dai.decimals", 18)
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// FLOWKORA_DATABASE_HOST -> database.host
	v.SetEnvPrefix("FLOWKORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Session.Secret == "" {
		missing = append(missing, "session.secret")
	}
	if c.Webhook.Secret == "" {
		missing = append(missing, "webhook.secret")
	}
	if len(c.AES.Key) != 64 {
		missing = append(missing, "aes.key (64 hex chars)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
