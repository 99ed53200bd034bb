// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
// 注意：不活跃期是金库常量，不在配置里
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig HTTP/3服务器配置
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"` // ":6000"

	// TLS证书，不存在时自动生成自签名证书
	CertFile         string `yaml:"certFile"`
	KeyFile          string `yaml:"keyFile"`
	CertValidityDays int    `yaml:"certValidityDays"` // 365

	// QUIC配置
	QUICKeepAlivePeriod time.Duration `yaml:"quicKeepAlivePeriod"` // 10 * time.Second
	QUICMaxIdleTimeout  time.Duration `yaml:"quicMaxIdleTimeout"`  // 5 * time.Minute
	QUICAllow0RTT       bool          `yaml:"quicAllow0RTT"`       // true

	// HTTP配置
	HTTPTimeout        time.Duration `yaml:"httpTimeout"`        // 30 * time.Second
	MaxRequestBodySize int64         `yaml:"maxRequestBodySize"` // 1 << 20 (1MB)

	// 每个 IP 每秒允许的请求数，0 表示不限流
	RateLimitPerSecond int `yaml:"rateLimitPerSecond"` // 200
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// BadgerDB配置
	Path             string `yaml:"path"`     // "./data/vaultd"
	InMemory         bool   `yaml:"inMemory"` // false
	ValueLogFileSize int64  `yaml:"valueLogFileSize"`
	SyncWrites       bool   `yaml:"syncWrites"` // true
}

// RegistryConfig 金库注册表配置
type RegistryConfig struct {
	VaultCacheSize int `yaml:"vaultCacheSize"` // 1024
	MaxEventsPage  int `yaml:"maxEventsPage"`  // 500
}

// LedgerConfig 结算账本配置
type LedgerConfig struct {
	// Decimals 人类可读金额的小数位（例如 18 → 1.5 表示 1.5e18 个最小单位）
	Decimals int32 `yaml:"decimals"`
	// UnlimitedCredit 为 true 时存款不检查外部账户余额（参考模型：存款总是成功）
	UnlimitedCredit bool `yaml:"unlimitedCredit"`
	// Faucet 启动时注入的外部账户余额，值为人类可读金额
	Faucet map[string]string `yaml:"faucet"`
	// Rejecting 拒收转账的地址，用于演示 TransferFailed
	Rejecting []string `yaml:"rejecting"`
}

// AuthConfig 签名命令校验配置
type AuthConfig struct {
	MaxClockSkew    time.Duration `yaml:"maxClockSkew"`    // 5 * time.Minute
	ReplayCacheSize int           `yaml:"replayCacheSize"` // 100000
}

// LogConfig 日志配置
type LogConfig struct {
	Level      int `yaml:"level"`      // logs.LevelInfo
	BufferSize int `yaml:"bufferSize"` // 2000
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:          ":6000",
			CertFile:            "./data/server.crt",
			KeyFile:             "./data/server.key",
			CertValidityDays:    365,
			QUICKeepAlivePeriod: 10 * time.Second,
			QUICMaxIdleTimeout:  5 * time.Minute,
			QUICAllow0RTT:       true,
			HTTPTimeout:         30 * time.Second,
			MaxRequestBodySize:  1 << 20,
			RateLimitPerSecond:  200,
		},
		Database: DatabaseConfig{
			Path:             "./data/vaultd",
			InMemory:         false,
			ValueLogFileSize: 64 << 20,
			SyncWrites:       true,
		},
		Registry: RegistryConfig{
			VaultCacheSize: 1024,
			MaxEventsPage:  500,
		},
		Ledger: LedgerConfig{
			Decimals:        18,
			UnlimitedCredit: false,
			Faucet:          map[string]string{},
		},
		Auth: AuthConfig{
			MaxClockSkew:    5 * time.Minute,
			ReplayCacheSize: 100000,
		},
		Log: LogConfig{
			Level:      3,
			BufferSize: 2000,
		},
	}
}

// LoadFromFile 从 YAML 文件加载配置，未出现的字段保留默认值
// path 为空时直接返回默认配置
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listenAddr is required")
	}
	if c.Server.MaxRequestBodySize <= 0 {
		return fmt.Errorf("server.maxRequestBodySize must be positive")
	}
	if c.Server.RateLimitPerSecond < 0 {
		return fmt.Errorf("server.rateLimitPerSecond must not be negative")
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return errors.New("database.path is required unless database.inMemory is set")
	}
	if c.Registry.VaultCacheSize <= 0 {
		return fmt.Errorf("registry.vaultCacheSize must be positive")
	}
	if c.Registry.MaxEventsPage <= 0 {
		return fmt.Errorf("registry.maxEventsPage must be positive")
	}
	if c.Ledger.Decimals < 0 || c.Ledger.Decimals > 77 {
		return fmt.Errorf("ledger.decimals out of range: %d", c.Ledger.Decimals)
	}
	if c.Auth.MaxClockSkew <= 0 {
		return fmt.Errorf("auth.maxClockSkew must be positive")
	}
	if c.Auth.ReplayCacheSize <= 0 {
		return fmt.Errorf("auth.replayCacheSize must be positive")
	}
	return nil
}
