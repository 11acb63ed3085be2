package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type fileConfig struct {
	Redis  redisConfig  `toml:"redis"`
	Engine engineConfig `toml:"engine"`
	JWT    jwtConfig    `toml:"jwt"`
	Mail   mailConfig   `toml:"mail"`
}

type redisConfig struct {
	Addrs    []string `toml:"addrs"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
}

type engineConfig struct {
	Issuer          string `toml:"issuer"`
	DefaultAudience string `toml:"default_audience"`
	ProductionMode  bool   `toml:"production_mode"`
	// ChallengeKey is the base64 AES-256 key sealing activation and reset
	// tokens. Usually "${GOIDENTITY_CHALLENGE_KEY}".
	ChallengeKey string `toml:"challenge_key"`
}

type jwtConfig struct {
	// SigningKey is base64. Usually "${GOIDENTITY_JWT_KEY}".
	SigningKey string `toml:"signing_key"`
	AccessTTL  string `toml:"access_ttl"`
}

type mailConfig struct {
	ServiceName string `toml:"service_name"`
}

// loadConfig reads a TOML config, expanding ${VAR} references from the
// environment before decoding.
func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg fileConfig
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Redis.Addrs) == 0 {
		cfg.Redis.Addrs = []string{"localhost:6379"}
	}
	if cfg.Engine.ChallengeKey == "" {
		return nil, fmt.Errorf("engine.challenge_key is required")
	}
	if cfg.JWT.SigningKey == "" {
		return nil, fmt.Errorf("jwt.signing_key is required")
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// engineConfig builds the library configuration from the file.
func (c *fileConfig) engineConfig() (goIdentity.Config, error) {
	cfg := goIdentity.DefaultConfig()
	cfg.ProductionMode = c.Engine.ProductionMode

	if c.Engine.Issuer != "" {
		cfg.Issuer = c.Engine.Issuer
	}
	if c.Engine.DefaultAudience != "" {
		cfg.DefaultAudience = c.Engine.DefaultAudience
	}
	if c.Mail.ServiceName != "" {
		cfg.Mail.ServiceName = c.Mail.ServiceName
	}

	key, err := base64.StdEncoding.DecodeString(c.Engine.ChallengeKey)
	if err != nil {
		return cfg, fmt.Errorf("engine.challenge_key is not valid base64: %w", err)
	}
	cfg.Challenge.Key = key

	signingKey, err := base64.StdEncoding.DecodeString(c.JWT.SigningKey)
	if err != nil {
		return cfg, fmt.Errorf("jwt.signing_key is not valid base64: %w", err)
	}
	cfg.JWT.PrivateKey = signingKey

	if c.JWT.AccessTTL != "" {
		ttl, err := time.ParseDuration(c.JWT.AccessTTL)
		if err != nil {
			return cfg, fmt.Errorf("jwt.access_ttl is not a valid duration: %w", err)
		}
		cfg.JWT.AccessTTL = ttl
	}

	return cfg, cfg.Validate()
}
