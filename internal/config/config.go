package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tuition_billing/internal/config/connections/mongo"
	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/config/connections/redis"
	"tuition_billing/internal/config/connections/s3"
	"tuition_billing/internal/observability"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type NotifierSettings struct {
	URL           string
	Token         string
	Timeout       time.Duration
	CountryPrefix string
}

type ImportSettings struct {
	BatchSize   int
	HTTPTimeout time.Duration
	// AllowLocal lets sources name files on this host. Off for the server.
	AllowLocal bool
}

type BillingSettings struct {
	StrictTransitions     bool
	MonthsFile            string
	LegacyEarlyMonthsPaid *int
	ReportTimezone        string
	StatsCacheTTL         time.Duration
}

// Settings is everything read from the environment, before any connection
// is opened.
type Settings struct {
	Port     string
	LogLevel string

	Postgres postgres.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	S3       s3.ConnectionInfo
	Redis    redis.ConnectionInfo

	Notifier NotifierSettings
	Billing  BillingSettings
	Import   ImportSettings
}

type Config struct {
	Settings Settings

	Logger   *logrus.Logger
	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis
}

// Load reads .env (if present) and the process environment.
func Load(logger *logrus.Logger) Settings {
	_ = godotenv.Load()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	env := envReader{logger: logger}

	s := Settings{
		Port:     env.get("SERVER_PORT", "8070"),
		LogLevel: env.get("LOG_LEVEL", "info"),
		Postgres: postgres.ConnectionInfo{
			Host:     env.get("PG_HOST", "127.0.0.1"),
			Port:     env.get("PG_PORT", "5432"),
			User:     env.get("PG_USER", "root"),
			Password: env.get("PG_PASSWORD", "hello-world"),
			DB:       env.get("PG_DB", "tuition"),
			SSLMode:  env.get("PG_SSLMODE", "disable"),
			MaxConns: int32(env.integer("PG_MAX_CONNS", 10)),
		},
		Mongo: mongo.ConnectionInfo{
			URI:        env.get("MONGO_URI", ""),
			Scheme:     env.get("MONGO_SCHEME", "mongodb"),
			User:       env.get("MONGO_USER", "root"),
			Password:   env.get("MONGO_PASSWORD", "secret"),
			Host:       env.get("MONGO_HOST", "127.0.0.1"),
			Port:       env.get("MONGO_PORT", "27017"),
			DB:         env.get("MONGO_DB", "billing"),
			AuthSource: env.get("MONGO_AUTH_SOURCE", "admin"),
		},
		S3: s3.ConnectionInfo{
			Endpoint:  env.get("AWS_ENDPOINT", "http://localhost:9000"),
			AccessKey: env.get("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: env.get("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    env.get("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    env.get("AWS_BUCKET", "billing-reports"),
			UseSSL:    env.boolean("AWS_USE_SSL", false),

			ReportRetentionDays: env.integer("REPORT_RETENTION_DAYS", 0),
		},
		Redis: redis.ConnectionInfo{
			URL:      env.get("REDIS_URL", "redis://127.0.0.1:6379/0"),
			Password: env.get("REDIS_PASSWORD", ""),
		},
		Notifier: NotifierSettings{
			URL:           env.get("NOTIFIER_URL", ""),
			Token:         env.get("NOTIFIER_TOKEN", ""),
			Timeout:       env.duration("NOTIFIER_TIMEOUT", 5*time.Second),
			CountryPrefix: env.get("PHONE_COUNTRY_PREFIX", "62"),
		},
		Billing: BillingSettings{
			StrictTransitions: env.boolean("BILLING_STRICT_TRANSITIONS", false),
			MonthsFile:        env.get("REPORT_MONTHS_FILE", ""),
			ReportTimezone:    env.get("REPORT_TIMEZONE", "UTC"),
			StatsCacheTTL:     env.duration("STATS_CACHE_TTL", 10*time.Minute),
		},
		Import: ImportSettings{
			BatchSize:   env.integer("IMPORT_BATCH_SIZE", 500),
			HTTPTimeout: env.duration("IMPORT_HTTP_TIMEOUT", time.Minute),
			AllowLocal:  env.boolean("IMPORT_ALLOW_LOCAL", false),
		},
	}

	if v := env.get("REPORT_LEGACY_EARLY_MONTHS_PAID", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.Billing.LegacyEarlyMonthsPaid = &n
		} else {
			logger.Warnf("[CONFIG] REPORT_LEGACY_EARLY_MONTHS_PAID=%q ignored", v)
		}
	}

	return s
}

// Init loads settings and opens every backend, exiting on failure.
func Init(ctx context.Context) *Config {
	boot := logrus.StandardLogger()
	s := Load(boot)
	logger := observability.NewLogger(s.LogLevel)

	s3c, err := s3.NewConnection(s.S3)
	if err != nil {
		logger.Fatalf("S3 connect error: %v", err)
	}
	if err := s3c.EnsureBucket(ctx); err != nil {
		logger.Fatalf("S3 bucket error: %v", err)
	}

	mg, err := mongo.NewConnection(ctx, s.Mongo)
	if err != nil {
		logger.Fatalf("Mongo connect error: %v", err)
	}

	pg, err := postgres.NewConnection(ctx, s.Postgres)
	if err != nil {
		logger.Fatalf("Postgres connect error: %v", err)
	}

	rd, err := redis.NewConnection(ctx, s.Redis)
	if err != nil {
		logger.Fatalf("Redis connect error: %v", err)
	}

	return &Config{
		Settings: s,
		Logger:   logger,
		S3:       s3c,
		Mongo:    mg,
		Postgres: pg,
		Redis:    rd,
	}
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Postgres == nil || c.Postgres.Pool == nil {
		errs = append(errs, errors.New("postgres not initialized"))
	} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
	}

	if c.Mongo == nil || c.Mongo.Client == nil {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	} else if !ok {
		errs = append(errs, fmt.Errorf("s3 bucket %q not found", c.S3.Bucket))
	}

	if c.Redis == nil || c.Redis.Client == nil {
		errs = append(errs, errors.New("redis not initialized"))
	} else if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
		errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

// Close releases every opened backend.
func (c *Config) Close(ctx context.Context) {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Close(ctx)
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// Location resolves REPORT_TIMEZONE, defaulting to UTC.
func (b BillingSettings) Location() *time.Location {
	if b.ReportTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type envReader struct {
	logger *logrus.Logger
}

func (e envReader) get(k, def string) string {
	return getenv(k, def)
}

func (e envReader) boolean(k string, def bool) bool {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		e.logger.Warnf("[CONFIG] %s=%q is not a boolean, using %v", k, v, def)
		return def
	}
	return b
}

func (e envReader) integer(k string, def int) int {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.logger.Warnf("[CONFIG] %s=%q is not an integer, using %d", k, v, def)
		return def
	}
	return n
}

func (e envReader) duration(k string, def time.Duration) time.Duration {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.logger.Warnf("[CONFIG] %s=%q is not a duration, using %s", k, v, def)
		return def
	}
	return d
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
