package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Payment PaymentConfig `mapstructure:"payment"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Serp    SerpConfig    `mapstructure:"serp"`
	Image   ImageConfig   `mapstructure:"image"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// PaymentConfig Masumi 支付服务配置
type PaymentConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Network         string        `mapstructure:"network"`
	AgentIdentifier string        `mapstructure:"agent_identifier"`
	SellerVKey      string        `mapstructure:"seller_vkey"`
	Amount          int64         `mapstructure:"amount"`
	Unit            string        `mapstructure:"unit"`
	PayByWindow     time.Duration `mapstructure:"pay_by_window"`      // payByTime = now + window
	SubmitWindow    time.Duration `mapstructure:"submit_window"`      // submitResultTime = now + window
	PollInterval    time.Duration `mapstructure:"poll_interval"`      // 支付状态轮询间隔
}

// MySQLConfig MySQL 配置（DSN 为空时使用内存存储）
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置（Addr 为空时不启用结果通知）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig LLM 配置
type OpenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// SerpConfig SERP 检索配置
type SerpConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Engine     string `mapstructure:"engine"`
	Location   string `mapstructure:"location"`
	Language   string `mapstructure:"language"`
	NumResults int    `mapstructure:"num_results"`
	Retries    int    `mapstructure:"retries"`
}

// ImageConfig 图片生成 Agent 配置（BaseURL 为空时跳过图片阶段）
type ImageConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ModelType    string        `mapstructure:"model_type"`
	IPFSGateway  string        `mapstructure:"ipfs_gateway"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
}

// Load 从配置文件加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadDefault 加载默认配置文件路径
func LoadDefault() (*Config, error) {
	return Load("config/config.yaml")
}

// applyDefaults 填充默认值
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Payment.Network == "" {
		c.Payment.Network = "Preprod"
	}
	if c.Payment.Amount == 0 {
		c.Payment.Amount = 1000000 // 1 ADA
	}
	if c.Payment.Unit == "" {
		c.Payment.Unit = "lovelace"
	}
	if c.Payment.PayByWindow == 0 {
		c.Payment.PayByWindow = 5 * time.Minute
	}
	if c.Payment.SubmitWindow == 0 {
		c.Payment.SubmitWindow = 20 * time.Minute
	}
	if c.Payment.PollInterval == 0 {
		c.Payment.PollInterval = 20 * time.Second
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Serp.Engine == "" {
		c.Serp.Engine = "google"
	}
	if c.Serp.NumResults == 0 {
		c.Serp.NumResults = 8
	}
	if c.Serp.Retries == 0 {
		c.Serp.Retries = 3
	}
	if c.Image.IPFSGateway == "" {
		c.Image.IPFSGateway = "https://ipfs.io/ipfs"
	}
	if c.Image.PollInterval == 0 {
		c.Image.PollInterval = time.Minute
	}
	if c.Image.MaxPolls == 0 {
		c.Image.MaxPolls = 60
	}
}

// Validate 验证配置完整性
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if err := validateURL(c.Payment.BaseURL, "payment.base_url"); err != nil {
		return err
	}
	if c.Payment.APIKey == "" {
		return fmt.Errorf("payment.api_key is required")
	}
	if c.Payment.AgentIdentifier == "" || c.Payment.AgentIdentifier == "REPLACE" {
		return fmt.Errorf("payment.agent_identifier is required")
	}
	if c.Payment.SellerVKey == "" {
		return fmt.Errorf("payment.seller_vkey is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	return nil
}

// validateURL 校验 URL 格式
func validateURL(url, name string) error {
	if url == "" {
		return fmt.Errorf("%s is required", name)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%s must start with http:// or https:// (got: %q)", name, url)
	}
	return nil
}
