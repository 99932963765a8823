package config

const EnvPrefix = "GOSTLY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "GOSTLY_APP_ENV"
	EnvPort         = "GOSTLY_APP_PORT"
	EnvDBDSN        = "GOSTLY_DB_DSN"
	EnvDBDriver     = "GOSTLY_DB_DRIVER"
	EnvDBHost       = "GOSTLY_DB_HOST"
	EnvDBUser       = "GOSTLY_DB_USER"
	EnvDBName       = "GOSTLY_DB_NAME"
	EnvDBPassword   = "GOSTLY_DB_PASSWORD"
	EnvRedisURL     = "GOSTLY_REDIS_URL"
	EnvJWTSecret    = "GOSTLY_AUTH_JWT_SECRET"
	EnvMailProvider = "GOSTLY_MAIL_PROVIDER"
	EnvOpenAIModel  = "GOSTLY_OPENAI_MODEL"
	EnvSenderLimit  = "GOSTLY_PIPELINE_SENDER_LIMIT"
)

const (
	MailProviderNoop    = "noop"
	MailProviderSMTP    = "smtp"
	MailProviderMailgun = "mailgun"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
