package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// VenueConfig 交易所网关配置
type VenueConfig struct {
	Endpoint   string `yaml:"endpoint" json:"endpoint"`       // HTTP 网关地址
	WSEndpoint string `yaml:"ws_endpoint" json:"ws_endpoint"` // 账户事件 WebSocket 地址（可选）
	Env        string `yaml:"env" json:"env"`                 // devnet / mainnet-beta
}

// WalletConfig 钱包配置
type WalletConfig struct {
	KeystorePath string `yaml:"keystore_path" json:"keystore_path"` // badger 密钥库路径
	// PrivateKey 可直接通过环境变量 PERPDASH_WALLET_KEY 注入（base58），优先于密钥库
	PrivateKey string `yaml:"-" json:"-"`
	// SecretKey 密钥库加密密钥，通过环境变量 PERPDASH_SECRET_KEY 注入
	SecretKey string `yaml:"-" json:"-"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// ServerConfig 控制面 HTTP 服务配置
type ServerConfig struct {
	Listen        string `yaml:"listen" json:"listen"`
	JournalDBPath string `yaml:"journal_db" json:"journal_db"`
}

// Config 应用配置
type Config struct {
	Venue               VenueConfig  `yaml:"venue" json:"venue"`
	Wallet              WalletConfig `yaml:"wallet" json:"wallet"`
	Log                 LogConfig    `yaml:"log" json:"log"`
	Server              ServerConfig `yaml:"server" json:"server"`
	PollIntervalSeconds int          `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
}

// ApplyDefaults 填充默认值
func (c *Config) ApplyDefaults() {
	if c.Venue.Endpoint == "" {
		c.Venue.Endpoint = "https://gateway.devnet.perpdash.io"
	}
	if c.Venue.Env == "" {
		c.Venue.Env = "devnet"
	}
	if c.Wallet.KeystorePath == "" {
		c.Wallet.KeystorePath = "data/keystore"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 7
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.JournalDBPath == "" {
		c.Server.JournalDBPath = "data/journal.db"
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 5 // 市场价格轮询间隔，默认 5 秒
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Venue.Endpoint == "" {
		return fmt.Errorf("venue.endpoint 不能为空")
	}
	if c.Venue.Env != "devnet" && c.Venue.Env != "mainnet-beta" {
		return fmt.Errorf("venue.env 必须是 devnet 或 mainnet-beta，实际为 %q", c.Venue.Env)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds 必须为正数")
	}
	return nil
}

// Load 从 YAML 文件加载配置，环境变量可覆盖关键字段
// path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖（PERPDASH_ 前缀）
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PERPDASH_VENUE_ENDPOINT"); v != "" {
		c.Venue.Endpoint = v
	}
	if v := os.Getenv("PERPDASH_VENUE_WS_ENDPOINT"); v != "" {
		c.Venue.WSEndpoint = v
	}
	if v := os.Getenv("PERPDASH_VENUE_ENV"); v != "" {
		c.Venue.Env = v
	}
	if v := os.Getenv("PERPDASH_WALLET_KEY"); v != "" {
		c.Wallet.PrivateKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("PERPDASH_KEYSTORE_PATH"); v != "" {
		c.Wallet.KeystorePath = v
	}
	if v := os.Getenv("PERPDASH_SECRET_KEY"); v != "" {
		c.Wallet.SecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("PERPDASH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PERPDASH_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("PERPDASH_JOURNAL_DB"); v != "" {
		c.Server.JournalDBPath = v
	}
	if v := os.Getenv("PERPDASH_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PollIntervalSeconds = n
		}
	}
}
