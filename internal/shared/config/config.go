package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Email     EmailConfig     `mapstructure:"email"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	SES       SESConfig       `mapstructure:"ses"`
	Server    ServerConfig    `mapstructure:"server"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Branding  BrandingConfig  `mapstructure:"branding"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// MongoDBConfig holds MongoDB configuration
type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RabbitMQConfig holds RabbitMQ configuration. An empty URL disables run events.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// RedisConfig holds Redis configuration. An empty address disables the run lock.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EmailConfig selects the outbound transport
type EmailConfig struct {
	Provider  string `mapstructure:"provider"` // smtp or ses
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
	PoolSize int    `mapstructure:"pool_size"`
}

// SESConfig holds AWS SES configuration
type SESConfig struct {
	Region string `mapstructure:"region"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	TriggerRPS    float64       `mapstructure:"trigger_rps"`
	TriggerBurst  int           `mapstructure:"trigger_burst"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// EngineConfig holds notification engine tuning
type EngineConfig struct {
	TimezoneOffsetHours    int           `mapstructure:"timezone_offset_hours"`
	CandidateConcurrency   int           `mapstructure:"candidate_concurrency"`
	DispatchTimeout        time.Duration `mapstructure:"dispatch_timeout"`
	DispatchRatePerSecond  float64       `mapstructure:"dispatch_rate_per_second"`
	DispatchBurst          int           `mapstructure:"dispatch_burst"`
	Locale                 string        `mapstructure:"locale"`
	DefaultAnnualFeeAmount float64       `mapstructure:"default_annual_fee_amount"`
	DefaultUnitRate        float64       `mapstructure:"default_unit_rate"`
	RunLockTTL             time.Duration `mapstructure:"run_lock_ttl"`
	TemplateCacheTTL       time.Duration `mapstructure:"template_cache_ttl"`
}

// BrandingConfig holds the static HTML shell branding
type BrandingConfig struct {
	CompanyName  string `mapstructure:"company_name"`
	FooterText   string `mapstructure:"footer_text"`
	PrimaryColor string `mapstructure:"primary_color"`
}

// SchedulerConfig controls the optional in-process cron trigger
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]interface{}{
	"mongodb.uri":                      "mongodb://localhost:27017",
	"mongodb.database":                 "notification_engine",
	"rabbitmq.url":                     "",
	"rabbitmq.exchange":                "notifications",
	"redis.address":                    "",
	"redis.password":                   "",
	"redis.db":                         0,
	"email.provider":                   "smtp",
	"email.from_email":                 "noreply@example.com",
	"email.from_name":                  "Notification Service",
	"smtp.host":                        "smtp.gmail.com",
	"smtp.port":                        587,
	"smtp.username":                    "",
	"smtp.password":                    "",
	"smtp.use_tls":                     false,
	"smtp.pool_size":                   2,
	"ses.region":                       "us-east-1",
	"server.port":                      "8084",
	"server.trigger_rps":               1.0,
	"server.trigger_burst":             5,
	"server.shutdown_grace":            "10s",
	"engine.timezone_offset_hours":     -6,
	"engine.candidate_concurrency":     4,
	"engine.dispatch_timeout":          "30s",
	"engine.dispatch_rate_per_second":  0.0,
	"engine.dispatch_burst":            1,
	"engine.locale":                    "es-MX",
	"engine.default_annual_fee_amount": 1500.0,
	"engine.default_unit_rate":         500.0,
	"engine.run_lock_ttl":              "10m",
	"engine.template_cache_ttl":        "1m",
	"branding.company_name":            "Mi Empresa",
	"branding.footer_text":             "Este es un mensaje automático, por favor no responda.",
	"branding.primary_color":           "#1f4e79",
	"scheduler.enabled":                false,
	"scheduler.schedule":               "0 9 * * *",
	"log.level":                        "info",
	"log.format":                       "json",
}

// LoadConfig loads configuration from defaults, an optional config.yaml and
// environment variables (MONGODB_URI, ENGINE_DISPATCH_TIMEOUT, ...)
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	switch c.Email.Provider {
	case "smtp", "ses":
	default:
		return fmt.Errorf("unsupported email provider %q", c.Email.Provider)
	}
	if c.Engine.TimezoneOffsetHours < -12 || c.Engine.TimezoneOffsetHours > 14 {
		return fmt.Errorf("timezone offset %d out of range", c.Engine.TimezoneOffsetHours)
	}
	if c.Engine.CandidateConcurrency < 1 {
		return errors.New("candidate concurrency must be at least 1")
	}
	if c.Engine.DispatchTimeout <= 0 {
		return errors.New("dispatch timeout must be positive")
	}
	if c.Email.FromEmail == "" {
		return errors.New("from email is required")
	}
	return nil
}
