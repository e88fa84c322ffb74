package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix 环境变量前缀，例如 RECALL_SERVER_HTTP_PORT
	EnvPrefix = "RECALL"
	// EnvAPIKey Embedding 凭证的通用环境变量
	EnvAPIKey = "OPENAI_API_KEY"
	// DefaultConfigName 默认配置文件名
	DefaultConfigName = "config.yaml"
)

// DefaultConfigPath 默认配置文件路径
func DefaultConfigPath() string {
	return filepath.Join(GetDataDir(), DefaultConfigName)
}

// Load 加载配置
// 优先级：环境变量 > 配置文件 > 默认值。path 为空时读取 <data dir>/config.yaml（不存在则忽略）
func Load(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, statErr)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"embedding.api_key", "vector.qdrant.api_key", "database.path"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv(EnvAPIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case "", "sqlite", "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	if c.Embedding.BatchSize <= 0 {
		return errors.New("embedding.batch_size must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("invalid search limits: default=%d max=%d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// Save 将配置写入 yaml 文件
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	// 可能包含凭证
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// loadDotEnv 加载 .env 文件，已存在的环境变量不会被覆盖
func loadDotEnv() {
	for _, p := range []string{".env", filepath.Join(GetDataDir(), ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}
