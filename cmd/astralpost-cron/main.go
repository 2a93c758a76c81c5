package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/astralpost/astralpost/pkg/almanac"
	"github.com/astralpost/astralpost/pkg/async"
	"github.com/astralpost/astralpost/pkg/billing"
	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/content"
	"github.com/astralpost/astralpost/pkg/mailer"
	"github.com/astralpost/astralpost/pkg/observability"
	"github.com/astralpost/astralpost/pkg/store"
	"github.com/astralpost/astralpost/pkg/users"
)

var (
	trialSchedule    = flag.String("trial-schedule", "0 * * * *", "Cron schedule for trial expiry + reminders (default: hourly)")
	almanacSchedule  = flag.String("almanac-schedule", "30 3 * * *", "Cron schedule for ephemeris refresh (default: 03:30 UTC)")
	newsSchedule     = flag.String("news-schedule", "15 */6 * * *", "Cron schedule for news refresh (default: every 6 hours)")
	generateSchedule = flag.String("generate-schedule", "0 4 * * *", "Cron schedule for newsletter pregeneration (default: 04:00 UTC)")
	pruneSchedule    = flag.String("prune-schedule", "45 2 * * *", "Cron schedule for retention pruning (default: 02:45 UTC)")
	requeueSchedule  = flag.String("requeue-schedule", "*/10 * * * *", "Cron schedule for stuck email requeue (default: every 10 minutes)")
	metricsAddr      = flag.String("metrics-addr", ":9091", "Address for the /metrics listener (empty to disable)")
	runOnce          = flag.Bool("run-once", false, "Run every job once and exit (for testing)")
)

// jobs bundles everything the scheduled functions touch.
type jobs struct {
	cfg       *config.Config
	billing   *billing.Service
	users     *users.Service
	queue     *mailer.Queue
	pipeline  *content.Pipeline
	ephemeris *almanac.EphemerisClient
	news      *almanac.NewsClient
	logger    *observability.Logger
}

// retentionPruner trims append-only tables past their retention windows.
type retentionPruner struct {
	db  *sql.DB
	cfg config.DatabaseConfig
}

func (p *retentionPruner) run(ctx context.Context) {
	pruned, err := store.PruneGenerationMetrics(ctx, p.db, p.cfg.MetricsTTL)
	if err != nil {
		log.WithError(err).Error("Generation metrics pruning failed")
	} else if pruned > 0 {
		log.WithField("rows", pruned).Info("Generation metrics pruned")
	}

	pruned, err = store.PruneWebhookMetrics(ctx, p.db, p.cfg.MetricsTTL)
	if err != nil {
		log.WithError(err).Error("Webhook metrics pruning failed")
	} else if pruned > 0 {
		log.WithField("rows", pruned).Info("Webhook metrics pruned")
	}

	pruned, err = store.PruneWebhookLedger(ctx, p.db, p.cfg.LedgerMaxAge)
	if err != nil {
		log.WithError(err).Error("Webhook ledger pruning failed")
	} else if pruned > 0 {
		log.WithField("rows", pruned).Info("Webhook ledger pruned")
	}
}

func main() {
	flag.Parse()

	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := store.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	rdb, err := store.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	prices, err := billing.LoadPriceMap(cfg.Billing.PriceMapPath, logger)
	if err != nil {
		log.Fatalf("Failed to load price map: %v", err)
	}

	queue := mailer.NewQueue(db, rdb, cfg.Mailer.QueueKey, metrics, logger)
	billingSvc := billing.NewService(db, cfg.Billing, prices, queue, logger, metrics)
	usersSvc := users.NewService(db, cfg.Users.TokenSecret, cfg.Billing.TrialDays, metrics, logger)

	static, err := content.LoadStaticFallbacks(cfg.Content.FallbackTemplatesPath, logger)
	if err != nil {
		log.Fatalf("Failed to load fallback templates: %v", err)
	}
	var archiver content.Archiver
	if s3Archiver, err := content.NewS3Archiver(ctx, cfg.Archive, logger); err != nil {
		log.Fatalf("Failed to initialize newsletter archiver: %v", err)
	} else if s3Archiver != nil {
		archiver = s3Archiver
	}

	pipeline := content.NewPipeline(
		cfg.Content,
		content.NewCache(rdb, cfg.Content.L1CacheSize, cfg.Content.CacheTTL, metrics, logger),
		&content.DefaultComposer{Model: cfg.Content.PrimaryModel},
		content.NewNovaProvider(cfg.Content.PrimaryBaseURL, cfg.Content.PrimaryAPIKey, cfg.Content.PrimaryModel, logger),
		content.NewScribeProvider(cfg.Content.FallbackBaseURL, cfg.Content.FallbackAPIKey, cfg.Content.FallbackModel, logger),
		content.NewValidator(content.NewWordlistFilter()),
		static,
		content.NewStoreSink(db, metrics, logger),
		archiver,
		metrics,
		logger,
	)

	j := &jobs{
		cfg:       cfg,
		billing:   billingSvc,
		users:     usersSvc,
		queue:     queue,
		pipeline:  pipeline,
		ephemeris: almanac.NewEphemerisClient(cfg.Almanac, rdb, logger),
		news:      almanac.NewNewsClient(cfg.Almanac, rdb, logger),
		logger:    logger,
	}
	pruner := &retentionPruner{db: db, cfg: cfg.Database}

	if *runOnce {
		log.Info("Running all jobs once")
		j.runTrialSweep(ctx)
		j.refreshAlmanac(ctx)
		j.refreshNews(ctx)
		j.pregenerate(ctx)
		j.requeueStuckEmails(ctx)
		pruner.run(ctx)
		log.Info("All jobs completed")
		return
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, registry)
	}

	c := cron.New()
	schedule(c, *trialSchedule, "trial sweep", func() { j.runTrialSweep(ctx) })
	schedule(c, *almanacSchedule, "ephemeris refresh", func() { j.refreshAlmanac(ctx) })
	schedule(c, *newsSchedule, "news refresh", func() { j.refreshNews(ctx) })
	schedule(c, *generateSchedule, "newsletter pregeneration", func() { j.pregenerate(ctx) })
	schedule(c, *requeueSchedule, "email requeue", func() { j.requeueStuckEmails(ctx) })
	schedule(c, *pruneSchedule, "retention pruning", func() { pruner.run(ctx) })

	c.Start()
	log.Info("Astral Post scheduler started")
	log.Infof("Trial sweep schedule: %s", *trialSchedule)
	log.Infof("Pregeneration schedule: %s", *generateSchedule)

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	stopCtx := c.Stop()
	<-stopCtx.Done()

	log.Info("Scheduler stopped")
}

func schedule(c *cron.Cron, spec, name string, fn func()) {
	if _, err := c.AddFunc(spec, fn); err != nil {
		log.Fatalf("Failed to schedule %s: %v", name, err)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Infof("Metrics listener on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics listener failed")
	}
}

func (j *jobs) runTrialSweep(ctx context.Context) {
	expired, err := j.billing.ProcessExpiredTrials(ctx)
	if err != nil {
		log.WithError(err).Error("Trial expiry sweep failed")
	} else {
		log.WithField("expired", expired).Info("Trial expiry sweep completed")
	}

	reminded, err := j.billing.SendTrialEndingReminders(ctx)
	if err != nil {
		log.WithError(err).Error("Trial reminder sweep failed")
	} else {
		log.WithField("reminded", reminded).Info("Trial reminder sweep completed")
	}

	if err := j.users.RefreshSubscriberGauge(ctx); err != nil {
		log.WithError(err).Error("Subscriber gauge refresh failed")
	}
}

func (j *jobs) refreshAlmanac(ctx context.Context) {
	// Today and tomorrow, so early-morning generation never waits on a fetch.
	for _, day := range []time.Time{time.Now().UTC(), time.Now().UTC().AddDate(0, 0, 1)} {
		if err := j.ephemeris.Refresh(ctx, day); err != nil {
			log.WithError(err).WithField("date", day.Format("2006-01-02")).Error("Ephemeris refresh failed")
		} else {
			log.WithField("date", day.Format("2006-01-02")).Info("Ephemeris refreshed")
		}
	}
}

func (j *jobs) refreshNews(ctx context.Context) {
	if err := j.news.Refresh(ctx); err != nil {
		log.WithError(err).Error("News refresh failed")
	} else {
		log.Info("Headlines refreshed")
	}
}

// pregenerate warms the content cache for every (perspective, tier) pair with
// at least one active subscriber, so the morning send reads entirely from
// cache.
func (j *jobs) pregenerate(ctx context.Context) {
	today := time.Now().UTC()

	daily, err := j.ephemeris.DailyContext(ctx, today)
	if err != nil {
		log.WithError(err).Error("Pregeneration aborted: no ephemeris context")
		return
	}
	news, err := j.news.TopHeadlines(ctx)
	if err != nil {
		log.WithError(err).Warn("Pregeneration continuing without headlines")
		news = nil
	}

	pairs, err := j.users.ActivePerspectiveTiers(ctx)
	if err != nil {
		log.WithError(err).Error("Pregeneration aborted: subscriber query failed")
		return
	}
	if len(pairs) == 0 {
		log.Info("Pregeneration skipped: no active subscribers")
		return
	}

	errs := async.Batch(ctx, pairs, 4, "newsletter pregeneration", j.cfg.Content.PremiumTimeout+5*time.Second,
		j.logger, func(jobCtx context.Context, pair [2]string) error {
			j.pipeline.Generate(jobCtx, content.Request{
				Perspective: content.Perspective(pair[0]),
				Tier:        pair[1],
				Date:        today,
			}, daily, news)
			return nil
		})
	if len(errs) > 0 {
		log.WithField("errors", len(errs)).Error("Pregeneration batch reported errors")
	} else {
		log.WithField("combinations", len(pairs)).Info("Newsletter pregeneration completed")
	}
}

func (j *jobs) requeueStuckEmails(ctx context.Context) {
	requeued, err := j.queue.RequeuePending(ctx, 15*time.Minute)
	if err != nil {
		log.WithError(err).Error("Email requeue failed")
		return
	}
	if requeued > 0 {
		log.WithField("requeued", requeued).Info("Stuck emails requeued")
	}
}
