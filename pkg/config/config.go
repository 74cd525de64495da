package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Voting       VotingConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

// Load reads the environment and reports every invalid section at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(),
		cfg.JWT.validate(),
		cfg.Voting.validate(),
		cfg.Outbox.validate(),
		cfg.RateLimit.validate(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POOLFUND_APP_ENV" required:"true"`
	Port         string `envconfig:"POOLFUND_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POOLFUND_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POOLFUND_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"POOLFUND_CORS_ORIGINS"`
	// MetricsAddr is where background workers serve /metrics. Empty disables it.
	MetricsAddr string `envconfig:"POOLFUND_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"POOLFUND_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"POOLFUND_DB_DSN"`
	Driver string `envconfig:"POOLFUND_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POOLFUND_DB_HOST"`
	LegacyPort     int    `envconfig:"POOLFUND_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POOLFUND_DB_USER"`
	LegacyPassword string `envconfig:"POOLFUND_DB_PASSWORD"`
	LegacyName     string `envconfig:"POOLFUND_DB_NAME"`
	LegacySSLMode  string `envconfig:"POOLFUND_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POOLFUND_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POOLFUND_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POOLFUND_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POOLFUND_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"POOLFUND_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"POOLFUND_REDIS_URL"`
	Address      string        `envconfig:"POOLFUND_REDIS_ADDR"`
	Password     string        `envconfig:"POOLFUND_REDIS_PASSWORD"`
	DB           int           `envconfig:"POOLFUND_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POOLFUND_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POOLFUND_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POOLFUND_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POOLFUND_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POOLFUND_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"POOLFUND_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"POOLFUND_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"POOLFUND_JWT_EXPIRATION_MINUTES" default:"60"`
}

func (j JWTConfig) validate() error {
	if j.ExpirationMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POOLFUND_AUTO_MIGRATE" default:"false"`
}

// VotingConfig tunes the payout voting engine and its expiry sweep.
type VotingConfig struct {
	SweepBatchSize       int    `envconfig:"POOLFUND_VOTING_SWEEP_BATCH_SIZE" default:"20"`
	SweepWorkers         int    `envconfig:"POOLFUND_VOTING_SWEEP_WORKERS" default:"4"`
	SweepOnRead          bool   `envconfig:"POOLFUND_VOTING_SWEEP_ON_READ" default:"true"`
	SweepCronSpec        string `envconfig:"POOLFUND_VOTING_SWEEP_CRON" default:"@every 1m"`
	DefaultDurationHours int    `envconfig:"POOLFUND_VOTING_DEFAULT_DURATION_HOURS" default:"72"`
}

func (v VotingConfig) validate() (err error) {
	if v.SweepBatchSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvVotingSweepBatchSize))
	}
	if v.SweepWorkers <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvVotingSweepWorkers))
	}
	if v.DefaultDurationHours < 1 || v.DefaultDurationHours > 720 {
		err = multierr.Append(err, fmt.Errorf("%s must be between 1 and 720", EnvVotingDefaultDuration))
	}
	if _, cronErr := cron.ParseStandard(v.SweepCronSpec); cronErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: %w", EnvVotingSweepCron, cronErr))
	}
	return err
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POOLFUND_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POOLFUND_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POOLFUND_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (o OutboxConfig) validate() (err error) {
	if o.BatchSize < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvOutboxBatchSize))
	}
	if o.MaxAttempts < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvOutboxMaxAttempts))
	}
	return err
}

// RateLimitConfig throttles vote submissions per caller. A zero limit disables it.
type RateLimitConfig struct {
	VoteLimit  int64         `envconfig:"POOLFUND_RATE_LIMIT_VOTE_LIMIT" default:"30"`
	VoteWindow time.Duration `envconfig:"POOLFUND_RATE_LIMIT_VOTE_WINDOW" default:"1m"`
}

func (r RateLimitConfig) validate() error {
	if r.VoteLimit > 0 && r.VoteWindow <= 0 {
		return fmt.Errorf("%s must be positive when %s is set", EnvVoteRateWindow, EnvVoteRateLimit)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"POOLFUND_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PayoutEventsTopic string `envconfig:"POOLFUND_PUBSUB_PAYOUT_EVENTS_TOPIC" default:"pool-payout-events"`
}

// ensureDSN builds a postgres URL from the discrete POOLFUND_DB_* variables
// when no DSN is given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
