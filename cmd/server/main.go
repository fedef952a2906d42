package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"novelist-server/internal/api"
	"novelist-server/internal/config"
	"novelist-server/internal/database"
	"novelist-server/internal/messaging"
	"novelist-server/internal/repository"
	"novelist-server/internal/service"
	"novelist-server/pkg/ai"
	"novelist-server/pkg/taskmanager"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		// Логируем как предупреждение, т.к. в production .env может не использоваться
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	initLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().Str("dsn", cfg.GetMaskedDSN()).Msg("configuration loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// База данных и миграции
	dbPool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer dbPool.Close()

	if err := database.ApplyMigrations(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Блокировка исполнителя: Redis, если настроен, иначе процессная
	var runnerLock repository.RunnerLock = repository.NewNoopRunnerLock()
	if cfg.RedisAddr != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		runnerLock = repository.NewRedisRunnerLock(redisClient)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, runner lock is in-process only")
	}

	// Уведомления: RabbitMQ, если настроен
	var notifier messaging.Notifier = messaging.NewNoopNotifier()
	if cfg.RabbitMQURL != "" {
		mqConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer mqConn.Close()

		rabbitNotifier, err := messaging.NewRabbitMQNotifier(mqConn, "novel_events")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create notifier")
		}
		defer rabbitNotifier.Close()
		notifier = rabbitNotifier
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, lifecycle notifications disabled")
	}

	// AI клиент
	aiClient, err := ai.New(ai.Config{
		APIKey:    cfg.AIAPIKey,
		ModelName: cfg.AIModel,
		BaseURL:   cfg.AIBaseURL,
		Timeout:   int(cfg.AITimeout.Seconds()),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}

	// Репозитории
	novelRepo := repository.NewPgNovelRepository(dbPool)
	userRepo := repository.NewPgUserRepository(dbPool)
	refRepo := repository.NewPgReferenceRepository(dbPool)

	// Менеджер фоновых задач
	taskManager := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxBackgroundTasks})

	// Сервисы
	novelService := service.NewNovelService(novelRepo, userRepo, refRepo, aiClient, taskManager, runnerLock, notifier)
	userService := service.NewUserService(userRepo)
	referenceService := service.NewReferenceService(refRepo)

	// HTTP обработчики и маршрутизатор
	router := api.NewRouter(cfg, log.Logger,
		api.NewNovelHandler(novelService),
		api.NewUserHandler(userService),
		api.NewReferenceHandler(referenceService),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	gracefulShutdown(server, taskManager)
}

// initLogger настраивает глобальный логгер
func initLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()

	// В режиме разработки используем более читаемый вывод
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	}

	logLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logLevel = lvl
	}
	zerolog.SetGlobalLevel(logLevel)
}

// gracefulShutdown останавливает сервер и дожидается фоновых задач.
// Задачи генерации не отменяются сразу: им дается время дописать
// текущую главу и зафиксировать статус.
func gracefulShutdown(server *http.Server, tm *taskmanager.Manager) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	tasksCtx, tasksCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer tasksCancel()

	if err := tm.Shutdown(tasksCtx); err != nil {
		log.Warn().Err(err).Msg("background tasks did not finish in time, cancelling")
		tm.Close()
	}

	log.Info().Msg("server exited")
}
