// Restavrator Server — оркестратор реставрации фотографий.
//
// Server:
//   - Принимает batch-задания через HTTP API и RabbitMQ
//   - Прогоняет каждое фото через пайплайн ANALYZE → PLAN → EDIT → VALIDATE
//   - Вызывает генеративную модель через bridge-сервис
//   - Решает судьбу результата через quality gate
//   - Публикует события заданий и завершённых runs в RabbitMQ
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fotoarhiv/restavrator/internal/api"
	"github.com/fotoarhiv/restavrator/internal/batch"
	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/mq"
	"github.com/fotoarhiv/restavrator/internal/pipeline"
	"github.com/fotoarhiv/restavrator/internal/repo"
	"github.com/fotoarhiv/restavrator/internal/stage"
	"github.com/fotoarhiv/restavrator/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting restavrator-server")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := repo.NewStore(pool)

	// Bridge генеративной модели
	client := capability.NewBridgeClient(capability.BridgeConfig{
		BaseURL: os.Getenv("CAPABILITY_URL"),
		APIKey:  os.Getenv("CAPABILITY_API_KEY"),
		Model:   os.Getenv("CAPABILITY_MODEL"),
	})

	// Пайплайн: stage handlers → step executor → runner с quality gate
	registry := stage.DefaultRegistry()
	executor := pipeline.NewStepExecutor(client, registry, store, pipeline.DefaultExecutorConfig(), logger)
	runner := pipeline.NewRunner(store, executor, pipeline.DefaultGatePolicy(), logger)

	// RabbitMQ — опционален: без брокера server работает только через HTTP
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in HTTP-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Batch manager; при наличии брокера runner оборачивается
	// observer'ом, публикующим run.finished
	var batchRunner batch.Runner = runner
	if publisher != nil {
		batchRunner = mq.NewRunObserver(runner, publisher, logger)
	}

	manager := batch.New(store, batchRunner, batch.Config{
		MaxConcurrentJobs: envInt("MAX_CONCURRENT_JOBS", 0),
		BatchTimeout:      envDuration("BATCH_TIMEOUT", 0),
		CleanupSchedule:   os.Getenv("CLEANUP_SCHEDULE"),
	}, logger)

	if publisher != nil {
		manager.Subscribe(mq.NewBatchNotifier(publisher, logger))
	}

	manager.Start(ctx)

	// Consumer сабмитов из очереди
	var consumer *mq.Consumer
	if mqConn != nil {
		consumer = mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueBatchesSubmitted),
			Handler: mq.NewBatchSubmittedHandler(manager, logger),
		})
		if err := consumer.Start(ctx); err != nil {
			logger.Warn("failed to start batch consumer", "error", err)
			consumer = nil
		}
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Manager:  manager,
		RunRepo:  store.Runs,
		StepRepo: store.Steps,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("SERVER_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if consumer != nil {
		consumer.Stop()
	}
	manager.Stop()
	logger.Info("restavrator-server stopped")
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
