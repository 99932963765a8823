package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Admin    AdminConfig
	Flags    FeatureFlagsConfig
	OpenAI   OpenAIConfig
	Pipeline PipelineConfig
	Twilio   TwilioConfig
	Stripe   StripeConfig
	Mail     MailConfig
	Outbox   OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Mail.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GOSTLY_APP_ENV" required:"true"`
	Port         string `envconfig:"GOSTLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GOSTLY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GOSTLY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GOSTLY_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"GOSTLY_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitList(a.CORSOrigins)
}

type ServiceConfig struct {
	Kind string `envconfig:"GOSTLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GOSTLY_DB_DSN"`
	Driver string `envconfig:"GOSTLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GOSTLY_DB_HOST"`
	LegacyPort     int    `envconfig:"GOSTLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GOSTLY_DB_USER"`
	LegacyPassword string `envconfig:"GOSTLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GOSTLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GOSTLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GOSTLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GOSTLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GOSTLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GOSTLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GOSTLY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GOSTLY_REDIS_URL"`
	Address      string        `envconfig:"GOSTLY_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"GOSTLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GOSTLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GOSTLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GOSTLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GOSTLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GOSTLY_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"GOSTLY_REDIS_WRITE_TIMEOUT" default:"3s"`
	Namespace    string        `envconfig:"GOSTLY_REDIS_NAMESPACE" default:"gostly"`
}

// AuthConfig verifies owner tokens issued by the hosted auth provider.
type AuthConfig struct {
	JWTSecret string `envconfig:"GOSTLY_AUTH_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"GOSTLY_AUTH_JWT_ISSUER"`
	Audience  string `envconfig:"GOSTLY_AUTH_JWT_AUDIENCE" default:"authenticated"`
}

type AdminConfig struct {
	Secret string `envconfig:"GOSTLY_ADMIN_SECRET"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"GOSTLY_AUTO_MIGRATE" default:"false"`
	InProcessRelay  bool `envconfig:"GOSTLY_IN_PROCESS_RELAY" default:"true"`
	SenderRateLimit bool `envconfig:"GOSTLY_SENDER_RATE_LIMIT" default:"true"`
}

type OpenAIConfig struct {
	APIKey          string        `envconfig:"GOSTLY_OPENAI_API_KEY"`
	BaseURL         string        `envconfig:"GOSTLY_OPENAI_BASE_URL"`
	Model           string        `envconfig:"GOSTLY_OPENAI_MODEL" default:"gpt-4o-mini"`
	Temperature     float64       `envconfig:"GOSTLY_OPENAI_TEMPERATURE" default:"0.2"`
	MaxTokens       int64         `envconfig:"GOSTLY_OPENAI_MAX_TOKENS" default:"300"`
	Timeout         time.Duration `envconfig:"GOSTLY_OPENAI_TIMEOUT" default:"12s"`
	MaxRetries      int           `envconfig:"GOSTLY_OPENAI_MAX_RETRIES" default:"1"`
	KnowledgeTokens int           `envconfig:"GOSTLY_OPENAI_KNOWLEDGE_TOKENS" default:"3000"`
}

// PipelineConfig tunes the inbound message handler.
type PipelineConfig struct {
	RequestTimeout   time.Duration `envconfig:"GOSTLY_PIPELINE_REQUEST_TIMEOUT" default:"20s"`
	SenderLimit      int           `envconfig:"GOSTLY_PIPELINE_SENDER_LIMIT" default:"20"`
	SenderWindow     time.Duration `envconfig:"GOSTLY_PIPELINE_SENDER_WINDOW" default:"1m"`
	DedupeTTL        time.Duration `envconfig:"GOSTLY_PIPELINE_DEDUPE_TTL" default:"24h"`
	ReplayWait       time.Duration `envconfig:"GOSTLY_PIPELINE_REPLAY_WAIT" default:"8s"`
	TaskWorkers      int           `envconfig:"GOSTLY_PIPELINE_TASK_WORKERS" default:"4"`
	TaskQueueSize    int           `envconfig:"GOSTLY_PIPELINE_TASK_QUEUE" default:"256"`
	TaskAttempts     int           `envconfig:"GOSTLY_PIPELINE_TASK_ATTEMPTS" default:"3"`
	TaskTimeout      time.Duration `envconfig:"GOSTLY_PIPELINE_TASK_TIMEOUT" default:"5s"`
	IncrementPerTurn int           `envconfig:"GOSTLY_PIPELINE_USAGE_INCREMENT" default:"1"`
}

type TwilioConfig struct {
	AuthToken        string `envconfig:"GOSTLY_TWILIO_AUTH_TOKEN"`
	PublicWebhookURL string `envconfig:"GOSTLY_TWILIO_WEBHOOK_URL"`
	ValidateRequests bool   `envconfig:"GOSTLY_TWILIO_VALIDATE" default:"false"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"GOSTLY_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"GOSTLY_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"GOSTLY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MailConfig struct {
	Provider string `envconfig:"GOSTLY_MAIL_PROVIDER" default:"noop"`
	From     string `envconfig:"GOSTLY_MAIL_FROM" default:"Gostly <no-reply@gostly.app>"`

	SMTPHost     string `envconfig:"GOSTLY_SMTP_HOST"`
	SMTPPort     int    `envconfig:"GOSTLY_SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"GOSTLY_SMTP_USERNAME"`
	SMTPPassword string `envconfig:"GOSTLY_SMTP_PASSWORD"`
	SMTPTLS      string `envconfig:"GOSTLY_SMTP_TLS" default:"mandatory"`

	MailgunDomain string `envconfig:"GOSTLY_MAILGUN_DOMAIN"`
	MailgunAPIKey string `envconfig:"GOSTLY_MAILGUN_API_KEY"`
	MailgunRegion string `envconfig:"GOSTLY_MAILGUN_REGION" default:"us"`
}

func (m MailConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Provider)) {
	case "", MailProviderNoop, MailProviderSMTP, MailProviderMailgun:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvMailProvider, m.Provider)
	}
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GOSTLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"25"`
	PollIntervalMS int `envconfig:"GOSTLY_OUTBOX_PUBLISH_POLL_MS" default:"1000"`
	MaxAttempts    int `envconfig:"GOSTLY_OUTBOX_MAX_ATTEMPTS" default:"8"`

	Retention           time.Duration `envconfig:"GOSTLY_OUTBOX_RETENTION" default:"336h"`
	DLQRetention        time.Duration `envconfig:"GOSTLY_OUTBOX_DLQ_RETENTION" default:"2160h"`
	MaintenanceInterval time.Duration `envconfig:"GOSTLY_OUTBOX_MAINTENANCE_INTERVAL" default:"6h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
