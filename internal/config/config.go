package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

func (a *AppCfg) PortString() string { return fmt.Sprintf("%d", a.Port) }

type MongoCfg struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTCfg struct {
	Alg           string `mapstructure:"alg"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	HSSecret      string `mapstructure:"hs_secret"`
}

// MailCfg points the unread aggregator at the internal-mail subsystem.
// Service is looked up in Consul when ConsulAddr is set, otherwise BaseURL
// is used directly.
type MailCfg struct {
	Service                string `mapstructure:"service"`
	BaseURL                string `mapstructure:"base_url"`
	ConsulAddr             string `mapstructure:"consul_addr"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	RetryMaxElapsedSeconds int    `mapstructure:"retry_max_elapsed_seconds"`
	BreakerMaxFailures     uint32 `mapstructure:"breaker_max_failures"`
	BreakerTimeoutSeconds  int    `mapstructure:"breaker_timeout_seconds"`
}

// AttachmentsCfg is the attachment acceptance policy. The limits live here
// so operators can tune them without a rebuild.
type AttachmentsCfg struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type S3Cfg struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
}

type RateLimitCfg struct {
	PerMinute int `mapstructure:"per_minute"`
}

type Config struct {
	App         AppCfg         `mapstructure:"app"`
	Mongo       MongoCfg       `mapstructure:"mongo"`
	Redis       RedisCfg       `mapstructure:"redis"`
	Kafka       KafkaCfg       `mapstructure:"kafka"`
	JWT         JWTCfg         `mapstructure:"jwt"`
	Mail        MailCfg        `mapstructure:"mail"`
	Attachments AttachmentsCfg `mapstructure:"attachments"`
	S3          S3Cfg          `mapstructure:"s3"`
	RateLimit   RateLimitCfg   `mapstructure:"rate_limit"`

	// Derived
	ShutdownTimeout time.Duration
	MailTimeout     time.Duration
	MailRetryMax    time.Duration
	BreakerTimeout  time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownTimeoutSeconds) * time.Second
	cfg.MailTimeout = time.Duration(cfg.Mail.TimeoutSeconds) * time.Second
	cfg.MailRetryMax = time.Duration(cfg.Mail.RetryMaxElapsedSeconds) * time.Second
	cfg.BreakerTimeout = time.Duration(cfg.Mail.BreakerTimeoutSeconds) * time.Second
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.ShutdownTimeoutSeconds == 0 {
		cfg.App.ShutdownTimeoutSeconds = 10
	}
	if cfg.Mail.TimeoutSeconds == 0 {
		cfg.Mail.TimeoutSeconds = 3
	}
	if cfg.Mail.RetryMaxElapsedSeconds == 0 {
		cfg.Mail.RetryMaxElapsedSeconds = 2
	}
	if cfg.Mail.BreakerMaxFailures == 0 {
		cfg.Mail.BreakerMaxFailures = 5
	}
	if cfg.Mail.BreakerTimeoutSeconds == 0 {
		cfg.Mail.BreakerTimeoutSeconds = 30
	}
	if cfg.Attachments.MaxBytes == 0 {
		cfg.Attachments.MaxBytes = 5 << 20
	}
	if len(cfg.Attachments.AllowedTypes) == 0 {
		cfg.Attachments.AllowedTypes = []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"application/pdf", "application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"text/plain",
		}
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 120
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "msg"
	}
	if cfg.Mail.Service == "" {
		cfg.Mail.Service = "mail"
	}
}

func validate(cfg *Config) error {
	if cfg.App.Port == 0 {
		return errors.New("app.port missing or invalid")
	}
	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if cfg.Mongo.DB == "" {
		return errors.New("mongo.db missing")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers missing")
	}
	if cfg.Kafka.Topic == "" {
		return errors.New("kafka.topic missing")
	}
	if cfg.Mail.BaseURL == "" && cfg.Mail.ConsulAddr == "" {
		return errors.New("mail.base_url or mail.consul_addr required")
	}

	switch strings.ToUpper(cfg.JWT.Alg) {
	case "RS256":
		if cfg.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	case "HS256":
		if cfg.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret required for HS256")
		}
	default:
		return errors.New("invalid jwt.alg (use RS256 or HS256)")
	}
	return nil
}
