package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/config"
	"github.com/Gopher0727/GroupKeeper/internal/handlers"
	"github.com/Gopher0727/GroupKeeper/internal/metrics"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/autodelete"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/calendar"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/kafka"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/panel"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/singleton"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
	"github.com/Gopher0727/GroupKeeper/internal/repositories"
	"github.com/Gopher0727/GroupKeeper/internal/routers"
	"github.com/Gopher0727/GroupKeeper/internal/scheduler"
	"github.com/Gopher0727/GroupKeeper/internal/services"
	"github.com/Gopher0727/GroupKeeper/internal/storage"
	"github.com/Gopher0727/GroupKeeper/internal/utils"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
	"github.com/Gopher0727/GroupKeeper/utils/ratelimit"
)

const (
	sweepQueueSize = 64
	notifyTimeout  = 10 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("groupkeeper", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "./config.toml", "path to the TOML configuration file")
	_ = flags.Parse(os.Args[1:])

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}
	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	lg, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Printf("Failed to init logger: %v", err)
		return 1
	}
	defer lg.Close()
	zl := lg.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.InitPostgres(cfg.Postgres, zl)
	if err != nil {
		zl.Error("Failed to init postgres", zap.Error(err))
		return 1
	}
	sqlDB, err := db.DB()
	if err != nil {
		zl.Error("Failed to get sql.DB", zap.Error(err))
		return 1
	}
	defer sqlDB.Close()

	rdb, err := storage.InitRedis(cfg.Redis)
	if err != nil {
		zl.Error("Failed to init redis", zap.Error(err))
		return 1
	}
	defer rdb.Close()

	// The lock gates everything that consumes updates or sends sweeps.
	var locker singleton.Locker
	if cfg.Singleton.Backend == "redis" {
		locker = singleton.NewRedisLocker(rdb, cfg.Bot.Token, cfg.Singleton.LeaseTTL, zl)
	} else {
		locker = singleton.NewPostgresLocker(sqlDB, cfg.Bot.Token)
	}
	if err := singleton.Acquire(ctx, locker); err != nil {
		zl.Error("Another instance is running", zap.String("backend", cfg.Singleton.Backend), zap.Error(err))
		return 1
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := locker.Unlock(releaseCtx); err != nil {
			zl.Warn("Failed to release instance lock", zap.Error(err))
		}
	}()

	m := metrics.New()
	tg := telegram.NewClient(cfg.Bot.APIEndpoint, cfg.Bot.Token, cfg.Bot.PollTimeout, zl)
	tg.SetObserver(m.ObserveCall)

	me, err := tg.GetMe(ctx)
	if err != nil {
		zl.Error("Failed to identify bot", zap.Error(err))
		return 1
	}
	zl.Info("Bot identified", zap.String("username", me.Username), zap.Int64("id", me.ID))

	var publisher services.BillingPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			zl.Warn("Kafka unavailable, billing events disabled", zap.Error(err))
		} else {
			defer producer.Close()
			publisher = producer
		}
	}

	groups := repositories.NewGroupRepository(db)
	users := repositories.NewUserRepository(db)
	sellers := repositories.NewSellerRepository(db)
	relations := repositories.NewRelationRepository(db)
	stats := repositories.NewStatsRepository(db)

	ledger := services.NewSubscriptionLedger(groups, tg, publisher, services.LedgerConfig{
		OwnerID:         cfg.Bot.OwnerID,
		DefaultTimezone: cfg.Bot.DefaultTimezone,
		TrialDays:       cfg.Bot.TrialDays,
	}, zl)

	// Validated by LoadConfig.
	cal, _ := calendar.ByName(cfg.Bot.Calendar)

	pool := utils.NewWorkerPool(cfg.Schedule.Workers, sweepQueueSize, zl)
	pool.Start()
	defer pool.Stop()
	engine := services.NewAggregationEngine(groups, users, relations, stats, tg, cal, pool, zl)

	panels := panel.NewManager(tg, zl)
	panels.SetGauge(m.PanelsOpen)
	deletes := autodelete.New(tg, zl)
	deletes.SetGauge(m.DeletesPending)

	bot := handlers.NewBot(handlers.Deps{
		Me:        *me,
		OwnerID:   cfg.Bot.OwnerID,
		Transport: tg,
		Panels:    panels,
		Deletes:   deletes,
		Limiter:   ratelimit.NewFixedWindowLimiter(rdb, zl, cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.FailOpen),
		Metrics:   m,
		Calendar:  cal,
		Ledger:    ledger,
		Access:    services.NewAccessResolver(groups, users, sellers, cfg.Bot.OwnerID),
		Users:     services.NewUserService(users, zl),
		Relations: services.NewRelationService(relations, users),
		Stats:     services.NewStatsService(stats),
		Sellers:   services.NewSellerService(sellers, groups, zl),
		ReplyTTL:  cfg.AutoDelete.DefaultDelay,
	}, zl)

	// Both clocks were validated by LoadConfig.
	morningH, morningM, _ := config.ParseClock(cfg.Schedule.MorningAt)
	eveningH, eveningM, _ := config.ParseClock(cfg.Schedule.EveningAt)
	daily := scheduler.NewDaily([]scheduler.Job{
		{Name: services.SweepMorning, Hour: morningH, Minute: morningM, Run: engine.MorningSweep},
		{Name: services.SweepEvening, Hour: eveningH, Minute: eveningM, Run: engine.EveningSweep},
	}, m, zl)

	srv := routers.NewServer(cfg.Server, m.Registry, map[string]routers.Check{
		"postgres": func(ctx context.Context) error { return storage.PingPostgres(ctx, db) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, zl)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Go(func() { deletes.Run(runCtx) })
	wg.Go(func() { daily.Run(runCtx) })
	wg.Go(func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("Ops server failed", zap.Error(err))
		}
	})

	poller := telegram.NewPoller(tg, bot.Handle, cfg.Bot.PollTimeout, zl)
	pollDone := make(chan error, 1)
	go func() { pollDone <- poller.Run(runCtx) }()
	zl.Info("GroupKeeper started", zap.Int("ops_port", cfg.Server.Port))

	var fatal error
	select {
	case <-ctx.Done():
		zl.Info("Shutdown signal received")
	case err := <-pollDone:
		fatal = err
		pollDone = nil
	case <-locker.Lost():
		fatal = singleton.ErrLost
	}

	cancel()
	if pollDone != nil {
		<-pollDone
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Ops server shutdown failed", zap.Error(err))
	}
	wg.Wait()

	if fatal != nil {
		zl.Error("Stopping on fatal error", zap.Error(fatal))
		notifyFatal(tg, cfg.Bot.OwnerID, fatal, zl)
		return 1
	}
	zl.Info("GroupKeeper stopped")
	return 0
}

type ownerNotifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// notifyFatal tells the owner why the process stopped. It runs after the
// shutdown budget is spent, so it gets a deadline of its own.
func notifyFatal(n ownerNotifier, ownerID int64, fatal error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := n.Notify(ctx, ownerID, "⚠️ GroupKeeper stopped: "+fatal.Error()); err != nil {
		log.Warn("Failed to notify owner", zap.Error(err))
	}
}
