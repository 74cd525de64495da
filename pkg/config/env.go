package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so the
// prefix only matters for fields without one.
const EnvPrefix = "POOLFUND"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "POOLFUND_APP_ENV"
	EnvPort     = "POOLFUND_APP_PORT"
	EnvLogLevel = "POOLFUND_LOG_LEVEL"

	EnvDBDSN    = "POOLFUND_DB_DSN"
	EnvDBDriver = "POOLFUND_DB_DRIVER"
	EnvDBHost   = "POOLFUND_DB_HOST"
	EnvDBUser   = "POOLFUND_DB_USER"
	EnvDBName   = "POOLFUND_DB_NAME"

	EnvRedisURL = "POOLFUND_REDIS_URL"

	EnvJWTSecret  = "POOLFUND_JWT_SECRET"
	EnvJWTIssuer  = "POOLFUND_JWT_ISSUER"
	EnvJWTExpMins = "POOLFUND_JWT_EXPIRATION_MINUTES"

	EnvVotingSweepBatchSize  = "POOLFUND_VOTING_SWEEP_BATCH_SIZE"
	EnvVotingSweepWorkers    = "POOLFUND_VOTING_SWEEP_WORKERS"
	EnvVotingSweepOnRead     = "POOLFUND_VOTING_SWEEP_ON_READ"
	EnvVotingSweepCron       = "POOLFUND_VOTING_SWEEP_CRON"
	EnvVotingDefaultDuration = "POOLFUND_VOTING_DEFAULT_DURATION_HOURS"

	EnvOutboxBatchSize   = "POOLFUND_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "POOLFUND_OUTBOX_MAX_ATTEMPTS"

	EnvCORSOrigins    = "POOLFUND_CORS_ORIGINS"
	EnvVoteRateLimit  = "POOLFUND_RATE_LIMIT_VOTE_LIMIT"
	EnvVoteRateWindow = "POOLFUND_RATE_LIMIT_VOTE_WINDOW"

	EnvGCPProjectID      = "POOLFUND_GCP_PROJECT_ID"
	EnvPubSubPayoutTopic = "POOLFUND_PUBSUB_PAYOUT_EVENTS_TOPIC"
)
