package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	amlhandler "deeptrack/internal/aml/handler"
	amlservice "deeptrack/internal/aml/service"
	keyhandler "deeptrack/internal/apikeys/handler"
	keyservice "deeptrack/internal/apikeys/service"
	"deeptrack/internal/apikeys/store"
	keymemory "deeptrack/internal/apikeys/store/memory"
	keyredis "deeptrack/internal/apikeys/store/redis"
	"deeptrack/internal/backend"
	billinghandler "deeptrack/internal/billing/handler"
	billingservice "deeptrack/internal/billing/service"
	jwttoken "deeptrack/internal/jwt_token"
	orghandler "deeptrack/internal/organization/handler"
	orgservice "deeptrack/internal/organization/service"
	"deeptrack/internal/platform/awsutil"
	"deeptrack/internal/platform/config"
	"deeptrack/internal/platform/httpserver"
	"deeptrack/internal/platform/logger"
	"deeptrack/internal/platform/metrics"
	"deeptrack/internal/platform/redis"
	ratemetrics "deeptrack/internal/ratelimit/metrics"
	ratemiddleware "deeptrack/internal/ratelimit/middleware"
	ratemodels "deeptrack/internal/ratelimit/models"
	"deeptrack/internal/ratelimit/store/bucket"
	"deeptrack/internal/verification"
	wizardhandler "deeptrack/internal/wizard/handler"
	wizardmetrics "deeptrack/internal/wizard/metrics"
	wizardmodels "deeptrack/internal/wizard/models"
	wizardservice "deeptrack/internal/wizard/service"
	wizardstore "deeptrack/internal/wizard/store"
	"deeptrack/internal/wizard/upload"
	"deeptrack/pkg/platform/audit/publisher"
	auditkafka "deeptrack/pkg/platform/audit/store/kafka"
	auditmemory "deeptrack/pkg/platform/audit/store/memory"
	"deeptrack/pkg/platform/circuit"
	"deeptrack/pkg/platform/middleware/admin"
	"deeptrack/pkg/platform/middleware/auth"
	"deeptrack/pkg/platform/middleware/metadata"
	"deeptrack/pkg/platform/middleware/requesttime"
)

// main wires configuration, infrastructure and the HTTP surface. Business
// logic lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type healthCheck func(ctx context.Context) error

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	checks := map[string]healthCheck{}
	backendMetrics := metrics.New()

	consoleBackend, err := newBackend(cfg.Backend.URL, "deeptrack-backend", cfg.Backend, backendMetrics, log)
	if err != nil {
		return err
	}
	publicAPI, err := newBackend(cfg.Backend.APIURL, "deeptrack-api", cfg.Backend, backendMetrics, log)
	if err != nil {
		return err
	}

	auditPublisher, closeAudit, err := newAuditPublisher(ctx, cfg.Kafka, checks, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		keyCache store.Cache                = keymemory.New()
		buckets  ratemiddleware.BucketStore = bucket.NewInMemoryBucketStore()
	)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks["redis"] = rdb.Health
		keyCache = keyredis.New(rdb.Client)
		buckets = bucket.NewRedisBucketStore(rdb.Client)
	} else {
		log.Info("redis not configured, api key cache and rate limits are per process")
	}
	limiter := ratemiddleware.New(buckets, rateLimits(cfg.RateLimit), log,
		ratemiddleware.WithDisabled(cfg.RateLimit.Disabled),
		ratemiddleware.WithMetrics(ratemetrics.New()),
	)

	transport, err := newUploadTransport(ctx, cfg.Upload)
	if err != nil {
		return err
	}

	verifier, err := jwttoken.NewVerifier(cfg.Auth.PublicKeyPEM, cfg.Auth.HMACSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	orgs := orgservice.New(consoleBackend,
		orgservice.WithLogger(log),
		orgservice.WithAuditPublisher(auditPublisher),
	)
	keys := keyservice.New(consoleBackend, orgs,
		keyservice.WithLogger(log),
		keyservice.WithCache(keyCache, cfg.APIKeys.CacheTTL),
		keyservice.WithAuditPublisher(auditPublisher),
	)
	billing := billingservice.New(consoleBackend, orgs, keys, billingservice.WithLogger(log))
	screening := amlservice.New(publicAPI, keys,
		amlservice.WithLogger(log),
		amlservice.WithAuditPublisher(auditPublisher),
	)

	var wizard *wizardservice.Service
	sessions := wizardstore.NewInMemorySessionStore(
		wizardstore.WithIdleTTL(cfg.Wizard.SessionIdleTTL),
		wizardstore.WithEvictHook(func(s *wizardmodels.Session) { wizard.Evicted(s) }),
	)
	wizard = wizardservice.New(sessions, keys,
		verification.NewClient(consoleBackend,
			verification.WithTimeout(cfg.Wizard.VerificationTimeout),
			verification.WithLogger(log),
		),
		transport,
		wizardservice.WithLogger(log),
		wizardservice.WithAuditPublisher(auditPublisher),
		wizardservice.WithMetrics(wizardmetrics.New()),
		wizardservice.WithMaxUploadBytes(cfg.Upload.MaxBytes),
	)
	defer wizard.Wait()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.Wizard.SweepInterval)

	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthHandler(checks, log))
	r.With(admin.RequireAdminToken(cfg.Server.MetricsToken, log)).Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier, log))
		r.Group(func(r chi.Router) {
			r.Use(limiter.RateLimitAuthenticated(ratemodels.ClassDefault))
			orghandler.New(orgs, log).Register(r)
			keyhandler.New(keys, log).Register(r)
			billinghandler.New(billing, log).Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiter.RateLimitAuthenticated(ratemodels.ClassScreening))
			amlhandler.New(screening, log).Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiter.RateLimitAuthenticated(ratemodels.ClassVerification))
			wizardhandler.New(wizard, log, wizardhandler.WithMaxUploadBytes(cfg.Upload.MaxBytes)).Register(r)
		})
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	log.Info("starting deeptrack console", "addr", cfg.Server.Addr, "upload_transport", cfg.Upload.Transport)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

func newBackend(baseURL, name string, cfg config.Backend, m *metrics.Metrics, log *slog.Logger) (*backend.Client, error) {
	breaker := circuit.New(name,
		circuit.WithFailureThreshold(cfg.BreakerThreshold),
		circuit.WithCooldown(cfg.BreakerCooldown),
	)
	return backend.New(baseURL,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		backend.WithBreaker(breaker),
		backend.WithMetrics(m),
		backend.WithLogger(log),
	)
}

// newAuditPublisher streams to Kafka when brokers are configured and keeps
// events in memory otherwise.
func newAuditPublisher(ctx context.Context, cfg config.KafkaConfig, checks map[string]healthCheck, log *slog.Logger) (*publisher.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		log.Warn("kafka not configured, audit events kept in memory")
		p := publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithLogger(log))
		return p, p.Close, nil
	}

	sink, err := auditkafka.New(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	if err := sink.EnsureTopic(ctx, cfg.AuditPartitions, cfg.AuditReplication); err != nil {
		sink.Close()
		return nil, nil, err
	}
	checks["kafka"] = sink.Ping
	p := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.AuditAsyncBuffer),
		publisher.WithLogger(log),
	)
	log.Info("audit events streaming to kafka", "topic", cfg.AuditTopic, "brokers", strings.Join(cfg.Brokers, ","))
	return p, func() {
		p.Close()
		sink.Close()
	}, nil
}

func rateLimits(cfg config.RateLimit) ratemodels.Limits {
	return ratemodels.Limits{
		ratemodels.ClassDefault:      {Requests: cfg.DefaultRequests, Window: cfg.Window},
		ratemodels.ClassVerification: {Requests: cfg.VerificationRequests, Window: cfg.Window},
		ratemodels.ClassScreening:    {Requests: cfg.ScreeningRequests, Window: cfg.Window},
	}
}

func newUploadTransport(ctx context.Context, cfg config.Upload) (upload.Transport, error) {
	switch strings.ToLower(cfg.Transport) {
	case config.UploadTransportS3:
		awsCfg, err := awsutil.Load(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return upload.NewS3TransportFromClient(
			awsutil.NewS3Client(awsCfg, cfg.AWSEndpoint),
			cfg.S3Bucket,
			upload.WithPublicBaseURL(cfg.S3PublicBase),
		), nil
	case config.UploadTransportHTTP:
		return upload.NewHTTPTransport(cfg.Endpoint), nil
	}
	return nil, fmt.Errorf("unknown upload transport %q", cfg.Transport)
}

func healthHandler(checks map[string]healthCheck, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var errs []error
		for name, check := range checks {
			if err := check(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := errors.Join(errs...); err != nil {
			log.WarnContext(ctx, "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
