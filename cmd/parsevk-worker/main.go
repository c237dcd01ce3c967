// parseVK Worker — выполняет задачи парсинга.
//
// Worker:
//   - Получает job'ы из RabbitMQ (плюс polling fallback по PENDING)
//   - Обходит группы VK: посты, комментарии, профили авторов
//   - Все вызовы VK идут через gateway (rate limit, breaker, retry)
//   - Реализует retry job'ов с exponential backoff и DLQ
//
// Workers масштабируются горизонтально: состояние rate limiter'а,
// breaker'а и флагов отмены живёт в общем Redis.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andr-235/parseVK-sub006/internal/cancel"
	"github.com/andr-235/parseVK-sub006/internal/gateway"
	"github.com/andr-235/parseVK-sub006/internal/mq"
	"github.com/andr-235/parseVK-sub006/internal/orchestrator"
	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/store"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
	"github.com/andr-235/parseVK-sub006/internal/vk"
	"github.com/andr-235/parseVK-sub006/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting parsevk-worker")

	// graceful shutdown
	ctx, cancelFn := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelFn()

	token := os.Getenv("VK_TOKEN")
	if token == "" {
		logger.Error("VK_TOKEN is required")
		os.Exit(1)
	}

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	taskRepo := repo.NewTaskRepo(pool)
	groupRepo := repo.NewGroupRepo(pool)
	postRepo := repo.NewPostRepo(pool)
	commentRepo := repo.NewCommentRepo(pool)
	authorRepo := repo.NewAuthorRepo(pool)
	eventRepo := repo.NewEventRepo(pool)

	// Общее хранилище для лимитера, breaker'а и флагов отмены.
	// Redis делает их видимыми всем worker'ам; memory-fallback
	// годится только для одиночного процесса.
	var st store.Store
	st, err = store.NewRedisStoreFromEnv()
	if err != nil {
		logger.Warn("redis not available, using in-memory store", "error", err)
		st = store.NewMemoryStore()
	}

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		} else {
			logger.Debug("rabbitmq topology ready", "layout", mq.TopologyInfo())
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Gateway: rate limiter → circuit breaker → retry
	gw := gateway.New(gateway.Config{
		Limiter: gateway.NewRateLimiter(gateway.RateLimiterConfig{
			Store:  st,
			Name:   "vk",
			Logger: logger,
		}),
		Breaker: gateway.NewCircuitBreaker(gateway.BreakerConfig{
			Store:  st,
			Name:   "vk",
			Logger: logger,
		}),
		Retry: gateway.NewRetry(gateway.RetryConfig{
			IsRetryable: vk.IsTransient,
		}),
		Logger: logger,
	})

	// Клиент VK API
	vkClient := vk.NewClient(vk.ClientConfig{
		Token:   token,
		Gateway: gw,
		Logger:  logger,
	})

	// Реестр флагов отмены
	cancels := cancel.NewRegistry(st, logger)

	// Сервис жизненного цикла: worker использует его как Lifecycle
	// (Begin/Progress/Finish) для выполняемых задач.
	taskService := tasks.NewService(tasks.Config{
		Tasks:   taskRepo,
		Groups:  groupRepo,
		Queue:   noopQueue{},
		Cancels: cancels,
		Listeners: []tasks.Listener{
			tasks.NewAuditListener(eventRepo, logger),
			tasks.NewMetricsListener(),
			tasks.NewLogListener(logger),
		},
		Logger: logger,
	})

	// Оркестратор обхода групп
	orch := orchestrator.New(orchestrator.Config{
		API:       vkClient,
		Groups:    groupRepo,
		Posts:     postRepo,
		Comments:  commentRepo,
		Authors:   authorRepo,
		Lifecycle: taskService,
		Logger:    logger,
	})

	// Создаём worker
	w := worker.New(worker.Config{
		Runner:    orch,
		Tasks:     taskRepo,
		Publisher: publisher,
		Conn:      mqConn,
		Logger:    logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Gauge breaker'а обновляется периодически из общего хранилища:
	// breaker мог разомкнуть и другой worker.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				telemetry.SetBreakerState("vk", gw.BreakerState(ctx))
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Без брокера worker остаётся живым: работает polling fallback.
		if mqConn != nil && !mqConn.IsConnected() {
			w.Write([]byte("ok (mq reconnecting)"))
			return
		}
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancelFn()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("parsevk-worker stopped")
}

// noopQueue — worker не ставит новые задачи, Create/Resume живут в API.
type noopQueue struct{}

func (noopQueue) PublishTaskExecute(ctx context.Context, taskID uuid.UUID, attempt int) error {
	return nil
}
