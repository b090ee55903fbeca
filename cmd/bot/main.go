package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/app"
	"github.com/Freeeeeet/consultation_bot/internal/clock"
	"github.com/Freeeeeet/consultation_bot/internal/config"
	"github.com/Freeeeeet/consultation_bot/internal/controller"
	"github.com/Freeeeeet/consultation_bot/internal/httpapi"
	"github.com/Freeeeeet/consultation_bot/internal/lock"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Consultation bot stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting consultation bot",
		zap.String("environment", cfg.Environment),
		zap.Duration("scheduler_interval", cfg.SchedulerInterval))

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	// Redis нужен только для выбора одной тикающей реплики
	var locker lock.Locker = lock.NopLocker{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		redisLocker := lock.NewRedisLocker(redisClient)
		locker = redisLocker
		logger.Info("Scheduler leader lock enabled", zap.String("owner", redisLocker.Owner()))
	}

	botInstance, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.NewTelegramSender(botInstance), notify.DispatcherConfig{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
	}, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	clk := clock.Real()
	stores := repository.NewStores(pool)
	txRunner := repository.NewTxRunner(pool)

	sessions := service.NewSessionManager(txRunner, dispatcher, logger)
	timeouts := service.NewTimeoutService(stores, txRunner, sessions, dispatcher, clk, service.TimeoutConfig{
		SelectionTimeout:    cfg.SelectionTimeout,
		MissedAnswerPenalty: cfg.MissedAnswerPenalty,
		ScoreFloor:          cfg.ScoreFloor,
		BatchSize:           cfg.SchedulerBatchSize,
	}, logger)
	consultations := service.NewConsultationService(stores, txRunner, sessions, dispatcher, clk, service.ConsultationConfig{
		Cost:                cfg.ConsultationCost,
		ResponseTimeout:     cfg.ResponseTimeout,
		ConversationTimeout: cfg.ConversationTimeout,
	}, logger)
	users := service.NewUserService(stores.Users(), cfg.InitialEnergy, logger)
	researchers := service.NewResearcherService(stores.Researchers(), logger)

	scheduler := app.NewScheduler(timeouts, locker, cfg.SchedulerInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.HTTPAddr != "" {
		server := httpapi.NewServer(cfg.HTTPAddr, pool, consultations, logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", zap.Error(err))
			}
		}()
	}

	botController := controller.NewBotController(botInstance, users, researchers, consultations, clk, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		// Меню команд не критично для работы бота
		logger.Warn("Bot commands menu not set", zap.Error(err))
	}

	// Блокирует до SIGINT/SIGTERM
	botController.Start(ctx)

	logger.Info("Shutting down...")
	return nil
}
