package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Checker-Finance/client-portal/pkg/config"
)

// Config holds the runtime configuration for the portal service.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	Port        int
	PushPort    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Session lifecycle
	SessionTimeout time.Duration

	// Fixtures and simulated behaviour
	FixtureSeed int64
	LatencyMin  time.Duration
	LatencyMax  time.Duration
	StatusTick  time.Duration

	// Optional infrastructure; empty disables the component.
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	DatabaseURL string
	NATSURL     string
	AMQPURL     string

	NATSStream        string
	NATSSubjectPrefix string
	AMQPExchange      string
	AMQPInboundQueue  string

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	// Secrets. JWTSecretName is looked up in AWS Secrets Manager when set,
	// JWTSigningKey is the local fallback.
	AWSRegion     string
	JWTSecretName string
	JWTSigningKey string
	JWTIssuer     string

	NotificationAPIOrigin string

	CacheTTL    time.Duration
	CleanupFreq time.Duration

	LoginRatePerSec float64
	LoginRateBurst  int

	BcryptCost int
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:           pkgconfig.GetEnv("SERVICE_NAME", "client-portal"),
		Env:                   pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:              pkgconfig.GetEnv("LOG_LEVEL", "info"),
		Port:                  pkgconfig.GetEnvInt("PORT", 3000),
		PushPort:              pkgconfig.GetEnvInt("PUSH_PORT", 3001),
		HTTPReadTimeout:       pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:      pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:       pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:         pkgconfig.GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		SessionTimeout:        pkgconfig.GetEnvMinutes("SESSION_TIMEOUT", 10*time.Minute),
		FixtureSeed:           pkgconfig.GetEnvInt64("FIXTURE_SEED", 42),
		LatencyMin:            pkgconfig.GetEnvDuration("LATENCY_MIN", 0),
		LatencyMax:            pkgconfig.GetEnvDuration("LATENCY_MAX", 0),
		StatusTick:            pkgconfig.GetEnvDuration("STATUS_TICK", 30*time.Second),
		RedisAddr:             pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:               pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:             pkgconfig.GetEnv("REDIS_PASS", ""),
		DatabaseURL:           pkgconfig.GetEnv("DATABASE_URL", ""),
		NATSURL:               pkgconfig.GetEnv("NATS_URL", ""),
		AMQPURL:               pkgconfig.GetEnv("AMQP_URL", ""),
		NATSStream:            pkgconfig.GetEnv("NATS_STREAM", "PORTAL_EVENTS"),
		NATSSubjectPrefix:     pkgconfig.GetEnv("NATS_SUBJECT_PREFIX", "evt.portal"),
		AMQPExchange:          pkgconfig.GetEnv("AMQP_EXCHANGE", "portal.notifications"),
		AMQPInboundQueue:      pkgconfig.GetEnv("AMQP_INBOUND_QUEUE", "portal.notifications.inbound"),
		PGMaxConns:            pkgconfig.GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:            pkgconfig.GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:     pkgconfig.GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:     pkgconfig.GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod:   pkgconfig.GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
		AWSRegion:             pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		JWTSecretName:         pkgconfig.GetEnv("JWT_SECRET_NAME", ""),
		JWTSigningKey:         pkgconfig.GetEnv("JWT_SIGNING_KEY", "dev-signing-key-change-me"),
		JWTIssuer:             pkgconfig.GetEnv("JWT_ISSUER", "client-portal"),
		NotificationAPIOrigin: pkgconfig.GetEnv("NOTIFICATION_API_ORIGIN", ""),
		CacheTTL:              pkgconfig.GetEnvDuration("CACHE_TTL", 1*time.Hour),
		CleanupFreq:           pkgconfig.GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
		LoginRatePerSec:       pkgconfig.GetEnvFloat("LOGIN_RATE_PER_SEC", 1),
		LoginRateBurst:        pkgconfig.GetEnvInt("LOGIN_RATE_BURST", 5),
		BcryptCost:            pkgconfig.GetEnvInt("BCRYPT_COST", 10),
	}
}

// LatencyEnabled reports whether services should simulate network delay.
func (c *Config) LatencyEnabled() bool {
	return c.LatencyMax > 0
}
