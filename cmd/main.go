package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/varrock/clogboard/internal/adapters/discord"
	"github.com/varrock/clogboard/internal/adapters/hiscore"
	"github.com/varrock/clogboard/internal/adapters/ratelimit"
	"github.com/varrock/clogboard/internal/adapters/store"
	"github.com/varrock/clogboard/internal/app"
	"github.com/varrock/clogboard/internal/config"
	"github.com/varrock/clogboard/internal/scheduler"
	"github.com/varrock/clogboard/pkg/logger"
	"github.com/varrock/clogboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Persistence.
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.String("db_path", cfg.DBPath), logger.Error(err))
		return
	}
	defer db.Close()

	// Fetch pipeline: token bucket -> hiscore client -> queued fetcher.
	bucket := ratelimit.New(cfg.RequestsPerMinute, cfg.MaxBurst)
	client := hiscore.NewClient(cfg.HiscoreBaseURL, hiscore.WithTimeout(cfg.FetchTimeout()))
	fetcher := hiscore.NewFetcher(client, bucket,
		hiscore.WithCache(hiscore.NewCache(cfg.CacheTTL())),
		hiscore.WithMaxRetries(cfg.MaxRetries),
	)
	fetcher.Start(ctx)

	// Discord session. Slash commands only need the guilds intent.
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Error(ctx, "failed to create discord session", logger.Error(err))
		return
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	if err := session.Open(); err != nil {
		log.Error(ctx, "failed to connect to discord", logger.Error(err))
		return
	}
	defer session.Close()

	svc := app.NewService(db, fetcher, discord.NewMessenger(session),
		app.WithTopN(cfg.TopN),
		app.WithTotalAchievable(cfg.TotalAchievable),
		app.WithAccountEmojis(cfg.AccountEmojis),
	)

	commands := discord.NewCommands(session, db, svc,
		discord.WithAdminRole(cfg.AdminRoleID),
		discord.WithAdminUser(cfg.AdminUserID),
	)
	if err := commands.Register(); err != nil {
		log.Error(ctx, "failed to register commands", logger.Error(err))
		return
	}

	// Periodic sync, plus one pass at startup so a restart never leaves a
	// stale board for a full interval.
	sched := scheduler.New(cfg.SyncInterval)
	if err := sched.Start(ctx, svc.SyncAll); err != nil {
		log.Error(ctx, "failed to start scheduler", logger.Error(err))
		return
	}
	go svc.SyncAll(ctx)

	// Metrics and health endpoints.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting metrics server", logger.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", logger.Error(err))
		}
	}()

	log.Info(ctx, "clogboard running",
		logger.String("db_path", cfg.DBPath),
		logger.Duration("sync_interval", cfg.SyncInterval),
		logger.Int("top_n", cfg.TopN),
	)

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "scheduler shutdown failed", logger.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "metrics server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "stopped")
}
