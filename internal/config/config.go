package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Voting   VotingConfig   `yaml:"voting"`
	Escrow   EscrowConfig   `yaml:"escrow"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type LogConfig struct {
	Level         string `yaml:"level"`          // debug, info, warn, error
	RetentionDays int    `yaml:"retention_days"` // system_logs retention, 0 keeps forever
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// VotingConfig controls community validation and the automatic status evaluator.
type VotingConfig struct {
	ApproveRatio              float64 `yaml:"approve_ratio"`
	RejectRatio               float64 `yaml:"reject_ratio"`
	DefaultThreshold          int     `yaml:"default_threshold"`
	DefaultVoteDays           int     `yaml:"default_vote_days"`
	VoteConflictRetries       int     `yaml:"vote_conflict_retries"`
	EvaluationConflictRetries int     `yaml:"evaluation_conflict_retries"`
	DeadlineSweepCron         string  `yaml:"deadline_sweep_cron"`
	ExpirePolicy              string  `yaml:"expire_policy"` // hold, reject
	LocalWorkers              int     `yaml:"local_workers"`
}

// EscrowConfig configures the external settlement client and the confirmation budget.
type EscrowConfig struct {
	Driver          string        `yaml:"driver"` // http, simulated
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	PlatformAddress string        `yaml:"platform_address"`
	WalletProvider  string        `yaml:"wallet_provider"`
	MaxRetries      int           `yaml:"max_retries"`
	Backoff         time.Duration `yaml:"backoff"`
	ConfirmTimeout  time.Duration `yaml:"confirm_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		// Start from defaults so a partial file keeps sane values
		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Log: LogConfig{
			Level:         "info",
			RetentionDays: 30,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "fundgate.db",
		},
		JWT: JWTConfig{
			Secret:     "fundgate-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Voting: VotingConfig{
			ApproveRatio:              0.6,
			RejectRatio:               0.4,
			DefaultThreshold:          100,
			DefaultVoteDays:           30,
			VoteConflictRetries:       5,
			EvaluationConflictRetries: 3,
			DeadlineSweepCron:         "*/10 * * * *",
			ExpirePolicy:              "hold",
			LocalWorkers:              4,
		},
		Escrow: EscrowConfig{
			Driver:          "simulated",
			BaseURL:         "http://localhost:9090",
			PlatformAddress: "fundgate-escrow",
			WalletProvider:  "evm",
			MaxRetries:      5,
			Backoff:         2 * time.Second,
			ConfirmTimeout:  15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
	}
}

// Validate rejects configurations the state machine cannot run with.
func (c *Config) Validate() error {
	v := c.Voting
	if v.ApproveRatio <= 0 || v.ApproveRatio > 1 || v.RejectRatio < 0 || v.RejectRatio > 1 {
		return fmt.Errorf("voting ratios must be within [0,1], got approve=%v reject=%v", v.ApproveRatio, v.RejectRatio)
	}
	if v.RejectRatio >= v.ApproveRatio {
		return errors.New("voting.reject_ratio must be lower than voting.approve_ratio")
	}
	if v.DefaultThreshold <= 0 {
		return errors.New("voting.default_threshold must be positive")
	}
	switch v.ExpirePolicy {
	case "hold", "reject":
	default:
		return fmt.Errorf("unsupported voting.expire_policy: %s", v.ExpirePolicy)
	}
	if c.Escrow.MaxRetries <= 0 {
		return errors.New("escrow.max_retries must be positive")
	}
	if c.Escrow.ConfirmTimeout <= 0 {
		return errors.New("escrow.confirm_timeout must be positive")
	}
	switch c.Escrow.Driver {
	case "http", "simulated":
	default:
		return fmt.Errorf("unsupported escrow driver: %s", c.Escrow.Driver)
	}
	return nil
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if baseURL := os.Getenv("ESCROW_BASE_URL"); baseURL != "" {
		c.Escrow.BaseURL = baseURL
		c.Escrow.Driver = "http"
	}
	if apiKey := os.Getenv("ESCROW_API_KEY"); apiKey != "" {
		c.Escrow.APIKey = apiKey
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
