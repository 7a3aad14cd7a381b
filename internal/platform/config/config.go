// Package config loads process configuration with viper: built-in defaults,
// then an optional YAML file named by GUARDIAN_CONFIG, then GUARDIAN_*
// environment variables (dots become underscores, e.g. GUARDIAN_POLICY_ESCALATION_THRESHOLD).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "GUARDIAN"

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	NATS        NATSConfig       `mapstructure:"nats"`
	SMTP        SMTPConfig       `mapstructure:"smtp"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Policy      PolicyConfig     `mapstructure:"policy"`
	Timeouts    TimeoutConfig    `mapstructure:"timeouts"`
	Notify      NotifyConfig     `mapstructure:"notify"`
	Workers     WorkerConfig     `mapstructure:"workers"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Catalog     CatalogConfig    `mapstructure:"catalog"`
	Provider    ProviderConfig   `mapstructure:"provider"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type KafkaConfig struct {
	Brokers           string        `mapstructure:"brokers"`
	Acks              string        `mapstructure:"acks"`
	Retries           int           `mapstructure:"retries"`
	DeliveryTimeout   time.Duration `mapstructure:"delivery_timeout"`
	NotificationTopic string        `mapstructure:"notification_topic"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	LegalTo  string `mapstructure:"legal_to"`
}

type AuthConfig struct {
	JWTSigningKey string        `mapstructure:"jwt_signing_key"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

// PolicyConfig holds every trust & safety threshold and toggle.
type PolicyConfig struct {
	EscalationThreshold       int           `mapstructure:"escalation_threshold"`
	AutoRemoveThreshold       float64       `mapstructure:"auto_remove_threshold"`
	MinVerificationConfidence float64       `mapstructure:"min_verification_confidence"`
	StrongVerificationTTL     time.Duration `mapstructure:"strong_verification_ttl"`
	PaymentVerificationTTL    time.Duration `mapstructure:"payment_verification_ttl"`
	AllowedCountries          []string      `mapstructure:"allowed_countries"`
	BlockedCountries          []string      `mapstructure:"blocked_countries"`
	BlockedSubjects           []string      `mapstructure:"blocked_subjects"`
	HumanReviewEnabled        bool          `mapstructure:"human_review_enabled"`
	DefaultReportDecision     string        `mapstructure:"default_report_decision"`
	ReportDedupeWindow        time.Duration `mapstructure:"report_dedupe_window"`
	LegalReviewEnabled        bool          `mapstructure:"legal_review_enabled"`
	DefaultTakedownDecision   string        `mapstructure:"default_takedown_decision"`
	RestorationBusinessDays   int           `mapstructure:"restoration_business_days"`
	FalseClaimEmails          []string      `mapstructure:"false_claim_emails"`
	MaxRejectedClaims         int           `mapstructure:"max_rejected_claims"`
	MinorKeywords             []string      `mapstructure:"minor_keywords"`
}

type TimeoutConfig struct {
	Classifier   time.Duration `mapstructure:"classifier"`
	Provider     time.Duration `mapstructure:"provider"`
	Catalog      time.Duration `mapstructure:"catalog"`
	Notification time.Duration `mapstructure:"notification"`
}

type NotifyConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type WorkerConfig struct {
	RecoveryInterval    time.Duration `mapstructure:"recovery_interval"`
	RestorationInterval time.Duration `mapstructure:"restoration_interval"`
	StaleAfter          time.Duration `mapstructure:"stale_after"`
	BatchSize           int           `mapstructure:"batch_size"`
}

// ClassifierConfig selects the content classifier. An empty VendorURL keeps
// the built-in keyword classifier.
type ClassifierConfig struct {
	VendorURL        string `mapstructure:"vendor_url"`
	VendorAPIKey     string `mapstructure:"vendor_api_key"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
}

// CatalogConfig points at the host platform's content API. Empty BaseURL
// uses the in-memory catalog.
type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ProviderConfig routes the listed verification methods to an external
// identity vendor. Methods not listed keep the built-in providers.
type ProviderConfig struct {
	VendorURL string   `mapstructure:"vendor_url"`
	APIKey    string   `mapstructure:"api_key"`
	Methods   []string `mapstructure:"methods"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.retries", 3)
	v.SetDefault("kafka.delivery_timeout", 30*time.Second)
	v.SetDefault("kafka.notification_topic", "guardian.notifications")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "guardian.notify")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "trust-safety@localhost")
	v.SetDefault("smtp.legal_to", "legal@localhost")

	v.SetDefault("auth.jwt_signing_key", "")
	v.SetDefault("auth.issuer", "guardian")
	v.SetDefault("auth.token_ttl", 8*time.Hour)

	v.SetDefault("policy.escalation_threshold", 3)
	v.SetDefault("policy.auto_remove_threshold", 0.9)
	v.SetDefault("policy.min_verification_confidence", 0.6)
	v.SetDefault("policy.strong_verification_ttl", 365*24*time.Hour)
	v.SetDefault("policy.payment_verification_ttl", 30*24*time.Hour)
	v.SetDefault("policy.allowed_countries", []string{})
	v.SetDefault("policy.blocked_countries", []string{})
	v.SetDefault("policy.blocked_subjects", []string{})
	v.SetDefault("policy.human_review_enabled", true)
	v.SetDefault("policy.default_report_decision", "dismiss")
	v.SetDefault("policy.report_dedupe_window", 24*time.Hour)
	v.SetDefault("policy.legal_review_enabled", true)
	v.SetDefault("policy.default_takedown_decision", "reject")
	v.SetDefault("policy.restoration_business_days", 10)
	v.SetDefault("policy.false_claim_emails", []string{})
	v.SetDefault("policy.max_rejected_claims", 5)
	v.SetDefault("policy.minor_keywords", []string{})

	v.SetDefault("timeouts.classifier", 5*time.Second)
	v.SetDefault("timeouts.provider", 10*time.Second)
	v.SetDefault("timeouts.catalog", 3*time.Second)
	v.SetDefault("timeouts.notification", 5*time.Second)

	v.SetDefault("notify.max_attempts", 3)
	v.SetDefault("notify.initial_delay", 100*time.Millisecond)
	v.SetDefault("notify.max_delay", 2*time.Second)

	v.SetDefault("workers.recovery_interval", time.Minute)
	v.SetDefault("workers.restoration_interval", 5*time.Minute)
	v.SetDefault("workers.stale_after", 10*time.Minute)
	v.SetDefault("workers.batch_size", 100)

	v.SetDefault("classifier.vendor_url", "")
	v.SetDefault("classifier.vendor_api_key", "")
	v.SetDefault("classifier.failure_threshold", 5)

	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.api_key", "")

	v.SetDefault("provider.vendor_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.methods", []string{})
}

// Load builds the configuration. path may be empty; GUARDIAN_CONFIG is used then.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Policy.EscalationThreshold < 1 {
		errs = append(errs, errors.New("policy.escalation_threshold must be at least 1"))
	}
	if c.Policy.AutoRemoveThreshold <= 0 || c.Policy.AutoRemoveThreshold > 1 {
		errs = append(errs, errors.New("policy.auto_remove_threshold must be in (0, 1]"))
	}
	if c.Policy.MinVerificationConfidence < 0 || c.Policy.MinVerificationConfidence > 1 {
		errs = append(errs, errors.New("policy.min_verification_confidence must be in [0, 1]"))
	}
	if c.Policy.RestorationBusinessDays < 1 {
		errs = append(errs, errors.New("policy.restoration_business_days must be at least 1"))
	}
	switch c.Policy.DefaultReportDecision {
	case "dismiss", "warn_user", "remove_content":
	default:
		errs = append(errs, fmt.Errorf("policy.default_report_decision %q is not supported", c.Policy.DefaultReportDecision))
	}
	switch c.Policy.DefaultTakedownDecision {
	case "approve", "reject":
	default:
		errs = append(errs, fmt.Errorf("policy.default_takedown_decision %q is not supported", c.Policy.DefaultTakedownDecision))
	}
	if c.Environment == "production" && c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("auth.jwt_signing_key is required in production"))
	}
	return errors.Join(errs...)
}
