package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgerhandler "guardian/internal/ledger/handler"
	ledgermetrics "guardian/internal/ledger/metrics"
	ledgerservice "guardian/internal/ledger/service"
	ledgerstore "guardian/internal/ledger/store"
	"guardian/internal/notify"
	"guardian/internal/platform/config"
	"guardian/internal/platform/database"
	"guardian/internal/platform/health"
	"guardian/internal/platform/kafka/producer"
	"guardian/internal/platform/nats"
	"guardian/internal/platform/redis"
	reporthandler "guardian/internal/reports/handler"
	"guardian/internal/reports/idempotency"
	reportmetrics "guardian/internal/reports/metrics"
	reportmodels "guardian/internal/reports/models"
	reportservice "guardian/internal/reports/service"
	reportstore "guardian/internal/reports/store"
	"guardian/internal/scanning/classifier"
	scanhandler "guardian/internal/scanning/handler"
	"guardian/internal/scanning/hashes"
	scanmetrics "guardian/internal/scanning/metrics"
	scanservice "guardian/internal/scanning/service"
	scanstore "guardian/internal/scanning/store"
	"guardian/internal/stats"
	takedownhandler "guardian/internal/takedown/handler"
	takedownmetrics "guardian/internal/takedown/metrics"
	takedownservice "guardian/internal/takedown/service"
	takedownstore "guardian/internal/takedown/store"
	httptransport "guardian/internal/transport/http"
	verificationhandler "guardian/internal/verification/handler"
	verificationmetrics "guardian/internal/verification/metrics"
	verificationmodels "guardian/internal/verification/models"
	"guardian/internal/verification/providers"
	verificationregistry "guardian/internal/verification/registry"
	verificationservice "guardian/internal/verification/service"
	verificationstore "guardian/internal/verification/store"
	"guardian/internal/workers/recovery"
	"guardian/internal/workers/restoration"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/circuit"
	"guardian/pkg/platform/middleware/request"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/retry"
	"guardian/pkg/platform/tracer"
)

// devSigningKey signs reviewer tokens when no key is configured outside
// production. cmd/tokengen uses the same default.
const devSigningKey = "guardian-dev-signing-key"

// infra holds the optional external connections. Each is nil when its
// section is not configured; the matching components fall back to memory.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
	nats     *nats.Client
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	pool, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	in.db = pool
	if pool != nil {
		log.Info("connected to postgres",
			"max_open_conns", cfg.Database.MaxOpenConns,
		)
		if cfg.Database.AutoMigrate {
			if err := pool.Migrate(ctx); err != nil {
				in.Close(log)
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			log.Info("database schema migrated")
		}
	} else {
		log.Warn("database.url is not set, using in-memory stores")
	}

	in.redis, err = redis.New(cfg.Redis)
	if err != nil {
		in.Close(log)
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if in.redis != nil {
		log.Info("connected to redis", "pool_size", cfg.Redis.PoolSize)
	}

	in.producer, err = producer.New(cfg.Kafka, log)
	if err != nil {
		in.Close(log)
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	in.nats, err = nats.New(cfg.NATS, log)
	if err != nil {
		in.Close(log)
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return in, nil
}

func (in *infra) sqlDB() *sql.DB {
	if in.db == nil {
		return nil
	}
	return in.db.DB()
}

func (in *infra) Close(log *slog.Logger) {
	if in.nats != nil {
		in.nats.Close()
	}
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			log.Warn("failed to close kafka producer", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("failed to close postgres pool", "error", err)
		}
	}
}

func (in *infra) registerChecks(h *health.Handler) {
	if in.db != nil {
		h.RegisterCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		h.RegisterCheck("redis", func(ctx context.Context) error {
			in.redis.RecordPoolStats()
			return in.redis.Health(ctx)
		})
	}
	if in.producer != nil {
		h.RegisterCheck("kafka", in.producer.Health)
	}
	if in.nats != nil {
		h.RegisterCheck("nats", in.nats.Health)
	}
}

type application struct {
	handlers    httptransport.Handlers
	httpMetrics *request.Metrics
	actions     *actionlog.Recorder
	recovery    *recovery.Service
	restoration *restoration.Service
}

func build(ctx context.Context, cfg *config.Config, in *infra, log *slog.Logger) (*application, error) {
	db := in.sqlDB()
	policy := cfg.Policy

	var actionStore actionlog.Store = actionlog.NewInMemoryStore()
	if db != nil {
		actionStore = actionlog.NewPostgresStore(db)
	}
	actions := actionlog.NewRecorder(actionStore,
		actionlog.WithAsyncBuffer(1024),
		actionlog.WithLogger(log),
	)

	notifier := buildNotifier(cfg, in, log)
	catalog := buildCatalog(cfg, log)

	// Ledger
	var offenderStore ledgerservice.Store = ledgerstore.NewInMemoryStore()
	if db != nil {
		offenderStore = ledgerstore.NewPostgresStore(db)
	}
	ledgerSvc := ledgerservice.New(offenderStore,
		ledgerservice.WithThreshold(policy.EscalationThreshold),
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithActionLog(actions),
	)

	// Verification
	verificationSvc, err := buildVerification(ctx, cfg, in, actions, log)
	if err != nil {
		return nil, err
	}

	// Scanning
	var scanResults scanservice.Store = scanstore.NewInMemoryStore()
	var illegal scanservice.HashRegistry = hashes.NewInMemoryRegistry(hashes.Illegal)
	if db != nil {
		scanResults = scanstore.NewPostgresStore(db)
		illegal = hashes.NewPostgresRegistry(db, hashes.Illegal)
	}
	scanMetrics := scanmetrics.New()
	scanSvc := scanservice.New(scanResults, buildClassifier(cfg, scanMetrics, log),
		scanservice.WithHashRegistry(illegal),
		scanservice.WithTimeout(cfg.Timeouts.Classifier),
		scanservice.WithMinorKeywords(policy.MinorKeywords),
		scanservice.WithActionLog(actions),
		scanservice.WithLogger(log),
		scanservice.WithMetrics(scanMetrics),
		scanservice.WithTracer(tracer.NewOTel("guardian/scanning")),
	)

	// Reports
	var reportStore reportservice.Store = reportstore.NewInMemoryStore()
	if db != nil {
		reportStore = reportstore.NewPostgresStore(db)
	}
	var idem reportservice.Idempotency = idempotency.NewInMemory()
	if in.redis != nil {
		idem = idempotency.NewRedis(in.redis.Client)
	}
	reportSvc := reportservice.New(reportStore, catalog, scanSvc, ledgerSvc,
		reportservice.WithPolicy(reportservice.Policy{
			AutoRemoveThreshold: policy.AutoRemoveThreshold,
			EscalationThreshold: policy.EscalationThreshold,
			HumanReviewEnabled:  policy.HumanReviewEnabled,
			DefaultDecision:     reportmodels.Action(policy.DefaultReportDecision),
			DedupeWindow:        policy.ReportDedupeWindow,
			CatalogTimeout:      cfg.Timeouts.Catalog,
		}),
		reportservice.WithIdempotency(idem),
		reportservice.WithNotifier(notifier),
		reportservice.WithActionLog(actions),
		reportservice.WithLogger(log),
		reportservice.WithMetrics(reportmetrics.New()),
		reportservice.WithTracer(tracer.NewOTel("guardian/reports")),
	)

	// Takedowns
	var takedownStore takedownservice.Store = takedownstore.NewInMemoryStore()
	var works takedownservice.WorksRegistry = hashes.NewInMemoryRegistry(hashes.Copyright)
	if db != nil {
		takedownStore = takedownstore.NewPostgresStore(db)
		works = hashes.NewPostgresRegistry(db, hashes.Copyright)
	}
	takedownSvc := takedownservice.New(takedownStore, catalog, ledgerSvc,
		takedownservice.WithPolicy(takedownservice.Policy{
			LegalReviewEnabled:      policy.LegalReviewEnabled,
			DefaultDecision:         policy.DefaultTakedownDecision,
			RestorationBusinessDays: policy.RestorationBusinessDays,
			FalseClaimEmails:        policy.FalseClaimEmails,
			MaxRejectedClaims:       policy.MaxRejectedClaims,
			Timeout:                 cfg.Timeouts.Catalog,
		}),
		takedownservice.WithWorksRegistry(works),
		takedownservice.WithNotifier(notifier),
		takedownservice.WithActionLog(actions),
		takedownservice.WithLogger(log),
		takedownservice.WithMetrics(takedownmetrics.New()),
		takedownservice.WithTracer(tracer.NewOTel("guardian/takedown")),
	)

	// Workers
	recoveryWorker, err := recovery.New(verificationSvc, reportSvc, takedownSvc,
		recovery.WithInterval(cfg.Workers.RecoveryInterval),
		recovery.WithStaleAfter(cfg.Workers.StaleAfter),
		recovery.WithBatchSize(cfg.Workers.BatchSize),
		recovery.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("create recovery worker: %w", err)
	}
	restorationWorker, err := restoration.New(takedownSvc,
		restoration.WithInterval(cfg.Workers.RestorationInterval),
		restoration.WithBatchSize(cfg.Workers.BatchSize),
		restoration.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("create restoration worker: %w", err)
	}

	healthHandler := health.New(cfg.Environment)
	in.registerChecks(healthHandler)

	dashboard := stats.New(verificationSvc, scanSvc, reportSvc, takedownSvc, ledgerSvc, log)

	return &application{
		handlers: httptransport.Handlers{
			Verifications: verificationhandler.New(verificationSvc, log),
			Scans:         scanhandler.New(scanSvc, log),
			Reports:       reporthandler.New(reportSvc, log),
			Takedowns:     takedownhandler.New(takedownSvc, log),
			Ledger:        ledgerhandler.New(ledgerSvc, log),
			Stats:         stats.NewHandler(dashboard, log),
			Health:        healthHandler,
		},
		httpMetrics: request.NewMetrics(),
		actions:     actions,
		recovery:    recoveryWorker,
		restoration: restorationWorker,
	}, nil
}

func buildVerification(ctx context.Context, cfg *config.Config, in *infra, actions *actionlog.Recorder, log *slog.Logger) (*verificationservice.Service, error) {
	db := in.sqlDB()
	policy := cfg.Policy

	var requests verificationservice.Store = verificationstore.NewInMemoryStore()
	var blocklist verificationservice.Blocklist = verificationstore.NewInMemoryBlocklist()
	if db != nil {
		requests = verificationstore.NewPostgresStore(db)
		blocklist = verificationstore.NewPostgresBlocklist(db)
	}

	// Configured block-list entries are applied on every start.
	seeded := requesttime.Now(ctx)
	for _, subject := range policy.BlockedSubjects {
		if subject == "" {
			continue
		}
		if err := blocklist.Block(ctx, id.SubjectID(subject), "configured", seeded); err != nil {
			return nil, fmt.Errorf("seed block list: %w", err)
		}
	}

	var verified verificationservice.SubjectRegistry = verificationregistry.NewInMemoryRegistry()
	if in.redis != nil {
		verified = verificationregistry.NewRedisRegistry(in.redis.Client)
	}

	registry := providers.NewDefaultRegistry()
	if cfg.Provider.VendorURL != "" {
		for _, m := range cfg.Provider.Methods {
			method := verificationmodels.Method(m)
			if !method.IsValid() {
				return nil, fmt.Errorf("provider.methods: unknown verification method %q", m)
			}
			registry.Register(method, providers.NewHTTPProvider(providers.HTTPProviderConfig{
				ID:      "vendor-" + m,
				BaseURL: cfg.Provider.VendorURL,
				APIKey:  cfg.Provider.APIKey,
				Timeout: cfg.Timeouts.Provider,
			}))
			log.Info("verification method routed to vendor", "method", m)
		}
	}

	return verificationservice.New(requests, registry,
		verificationservice.WithPolicy(verificationservice.Policy{
			MinConfidence:    policy.MinVerificationConfidence,
			StrongTTL:        policy.StrongVerificationTTL,
			PaymentTTL:       policy.PaymentVerificationTTL,
			AllowedCountries: policy.AllowedCountries,
			BlockedCountries: policy.BlockedCountries,
			ProviderTimeout:  cfg.Timeouts.Provider,
		}),
		verificationservice.WithBlocklist(blocklist),
		verificationservice.WithSubjectRegistry(verified),
		verificationservice.WithActionLog(actions),
		verificationservice.WithLogger(log),
		verificationservice.WithMetrics(verificationmetrics.New()),
		verificationservice.WithTracer(tracer.NewOTel("guardian/verification")),
	), nil
}

// buildNotifier fans out to every configured sink. With none configured the
// notifier is nil and notifications are skipped.
func buildNotifier(cfg *config.Config, in *infra, log *slog.Logger) *notify.Notifier {
	var sinks notify.Fanout
	if in.producer != nil {
		sinks = append(sinks, notify.NewKafkaSink(in.producer, cfg.Kafka.NotificationTopic))
	}
	if in.nats != nil {
		sinks = append(sinks, notify.NewNATSSink(in.nats, cfg.NATS.SubjectPrefix))
	}
	if email := notify.NewEmailSink(cfg.SMTP); email != nil {
		sinks = append(sinks, email)
	}
	if len(sinks) == 0 {
		log.Warn("no notification sinks configured, notifications are disabled")
		return nil
	}

	return notify.NewNotifier(sinks,
		notify.WithMaxAttempts(cfg.Notify.MaxAttempts),
		notify.WithBackoff(retry.Backoff{
			InitialDelay: cfg.Notify.InitialDelay,
			MaxDelay:     cfg.Notify.MaxDelay,
		}),
		notify.WithTimeout(cfg.Timeouts.Notification),
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics()),
		notify.WithTracer(tracer.NewOTel("guardian/notify")),
	)
}

func buildCatalog(cfg *config.Config, log *slog.Logger) content.Catalog {
	if cfg.Catalog.BaseURL == "" {
		log.Warn("catalog.base_url is not set, using an empty in-memory catalog")
		return content.NewMemoryCatalog()
	}
	return content.NewHTTPCatalog(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, cfg.Timeouts.Catalog, nil)
}

// buildClassifier returns the keyword classifier unless a vendor is
// configured, in which case the vendor sits behind a circuit breaker.
func buildClassifier(cfg *config.Config, m *scanmetrics.Metrics, log *slog.Logger) classifier.Classifier {
	if cfg.Classifier.VendorURL == "" {
		return classifier.NewKeyword(nil)
	}
	vendor := classifier.NewHTTP(cfg.Classifier.VendorURL, cfg.Classifier.VendorAPIKey, cfg.Timeouts.Classifier, nil)
	breaker := circuit.New(vendor.Name(),
		circuit.WithFailureThreshold(cfg.Classifier.FailureThreshold),
		circuit.WithStateHook(func(name string, from, to circuit.State) {
			m.SetCircuitState(name, int(to))
			log.Warn("classifier circuit changed state",
				"classifier", name,
				"from", from,
				"to", to,
			)
		}),
	)
	return classifier.NewGuarded(vendor, breaker)
}
