package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andr-235/parseVK-sub006/internal/api"
	"github.com/andr-235/parseVK-sub006/internal/cancel"
	"github.com/andr-235/parseVK-sub006/internal/mq"
	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/store"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parsevk_api_http_requests_total",
		Help: "Total HTTP requests handled by parsevk_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting parsevk-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	taskRepo := repo.NewTaskRepo(pool)
	groupRepo := repo.NewGroupRepo(pool)
	postRepo := repo.NewPostRepo(pool)
	commentRepo := repo.NewCommentRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)
	eventRepo := repo.NewEventRepo(pool)

	// Redis для флагов отмены. Флаг ставит API, читает worker,
	// поэтому хранилище должно быть общим. Memory-fallback оставлен
	// для локальной разработки без Redis.
	var st store.Store
	st, err = store.NewRedisStoreFromEnv()
	if err != nil {
		logger.Warn("redis not available, cancellation flags stay in-process", "error", err)
		st = store.NewMemoryStore()
	}

	// RabbitMQ для публикации job'ов
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, tasks will be picked up by worker polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Сервис жизненного цикла задач
	taskService := tasks.NewService(tasks.Config{
		Tasks:   taskRepo,
		Groups:  groupRepo,
		Queue:   queueOrNoop(publisher),
		Cancels: cancel.NewRegistry(st, logger),
		Listeners: []tasks.Listener{
			tasks.NewAuditListener(eventRepo, logger),
			tasks.NewMetricsListener(),
			tasks.NewLogListener(logger),
		},
		Logger: logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		TaskService:  taskService,
		GroupRepo:    groupRepo,
		PostRepo:     postRepo,
		CommentRepo:  commentRepo,
		ScheduleRepo: scheduleRepo,
		EventRepo:    eventRepo,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancelFn := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelFn()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// queueOrNoop возвращает publisher либо заглушку, если RabbitMQ
// недоступен. Задачи остаются в PENDING и подбираются worker'ом
// через polling fallback.
func queueOrNoop(p *mq.Publisher) tasks.JobPublisher {
	if p != nil {
		return p
	}
	return noopQueue{}
}

type noopQueue struct{}

func (noopQueue) PublishTaskExecute(ctx context.Context, taskID uuid.UUID, attempt int) error {
	return nil
}
