// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Upload transports.
const (
	UploadTransportHTTP = "http"
	UploadTransportS3   = "s3"
)

// Config is the full service configuration.
type Config struct {
	Server    Server
	Backend   Backend
	Auth      Auth
	Wizard    Wizard
	Upload    Upload
	APIKeys   APIKeys
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimit
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"DEEPTRACK_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsToken    string        `env:"METRICS_TOKEN"`
}

// Backend locates the two external DeepTrack surfaces: the console backend
// (users, companies, keys, credits, verification) and the public API (AML).
type Backend struct {
	URL              string        `env:"DEEPTRACK_BACKEND_URL" envDefault:"http://localhost:4000"`
	APIURL           string        `env:"DEEPTRACK_API_URL" envDefault:"http://localhost:4001"`
	RequestTimeout   time.Duration `env:"BACKEND_REQUEST_TIMEOUT" envDefault:"15s"`
	BreakerThreshold int           `env:"BACKEND_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BACKEND_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Auth configures verification of identity-provider session tokens.
type Auth struct {
	PublicKeyPEM string `env:"IDP_JWT_PUBLIC_KEY"`
	HMACSecret   string `env:"IDP_JWT_SECRET"`
	Issuer       string `env:"IDP_JWT_ISSUER"`
}

// Wizard tunes identity-verification sessions.
type Wizard struct {
	VerificationTimeout time.Duration `env:"VERIFICATION_TIMEOUT" envDefault:"10s"`
	SessionIdleTTL      time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SweepInterval       time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
}

// Upload selects and configures the upload transport.
type Upload struct {
	Transport    string `env:"UPLOAD_TRANSPORT" envDefault:"http"`
	Endpoint     string `env:"UPLOAD_ENDPOINT"`
	MaxBytes     int64  `env:"UPLOAD_MAX_BYTES" envDefault:"8388608"`
	S3Bucket     string `env:"UPLOAD_S3_BUCKET"`
	S3PublicBase string `env:"UPLOAD_S3_PUBLIC_BASE_URL"`
	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpoint  string `env:"AWS_ENDPOINT_URL"`
}

// APIKeys configures the credential list cache.
type APIKeys struct {
	CacheTTL time.Duration `env:"APIKEY_CACHE_TTL" envDefault:"30s"`
}

// RateLimit sets per-user sliding-window budgets. Counts are shared through
// Redis when it is configured.
type RateLimit struct {
	Disabled             bool          `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
	Window               time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	DefaultRequests      int           `env:"RATE_LIMIT_DEFAULT" envDefault:"300"`
	VerificationRequests int           `env:"RATE_LIMIT_VERIFICATION" envDefault:"120"`
	ScreeningRequests    int           `env:"RATE_LIMIT_SCREENING" envDefault:"20"`
}

// RedisConfig enables the shared api-key cache when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables streaming audit events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers          []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic       string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"deeptrack.audit"`
	AuditPartitions  int32    `env:"KAFKA_AUDIT_PARTITIONS" envDefault:"3"`
	AuditReplication int16    `env:"KAFKA_AUDIT_REPLICATION" envDefault:"1"`
	AuditAsyncBuffer int      `env:"AUDIT_ASYNC_BUFFER" envDefault:"256"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"DEEPTRACK_BACKEND_URL": c.Backend.URL,
		"DEEPTRACK_API_URL":     c.Backend.APIURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", name))
		}
	}
	if c.Auth.PublicKeyPEM == "" && c.Auth.HMACSecret == "" {
		errs = append(errs, errors.New("one of IDP_JWT_PUBLIC_KEY or IDP_JWT_SECRET is required"))
	}
	if c.Wizard.VerificationTimeout <= 0 {
		errs = append(errs, errors.New("VERIFICATION_TIMEOUT must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	switch strings.ToLower(c.Upload.Transport) {
	case UploadTransportHTTP:
		if c.Upload.Endpoint == "" {
			errs = append(errs, errors.New("UPLOAD_ENDPOINT is required for the http transport"))
		}
	case UploadTransportS3:
		if c.Upload.S3Bucket == "" {
			errs = append(errs, errors.New("UPLOAD_S3_BUCKET is required for the s3 transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown UPLOAD_TRANSPORT %q", c.Upload.Transport))
	}
	return errors.Join(errs...)
}
