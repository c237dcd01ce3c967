// parseVK Scheduler — создаёт задачи по расписаниям.
//
// Каждый тик scheduler выбирает due-расписания и создаёт задачи
// парсинга из их шаблонов. Лидерство между репликами решается через
// pg_try_advisory_lock: тикает только один процесс, CAS на next_due_at
// подстраховывает от дублей при смене лидера.
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
	"github.com/andr-235/parseVK-sub006/internal/mq"
	"github.com/andr-235/parseVK-sub006/internal/repo"
	"github.com/andr-235/parseVK-sub006/internal/scheduler"
	"github.com/andr-235/parseVK-sub006/internal/store"
	"github.com/andr-235/parseVK-sub006/internal/tasks"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
)

const schedLockKey int64 = 424242

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting parsevk-scheduler")

	// graceful shutdown
	ctx, cancelFn := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelFn()

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
	scheduleRepo := repo.NewScheduleRepo(pool)
	eventRepo := repo.NewEventRepo(pool)

	// Redis для флагов отмены (общий с API и worker'ами)
	var st store.Store
	st, err = store.NewRedisStoreFromEnv()
	if err != nil {
		logger.Warn("redis not available, using in-memory store", "error", err)
		st = store.NewMemoryStore()
	}

	// RabbitMQ для публикации job'ов созданных задач
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, created tasks rely on worker polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
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

	sched := scheduler.New(scheduler.Config{
		Schedules: scheduleRepo,
		Creator:   taskService,
		Logger:    logger,
	})

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancelFn()
		}
	}()

	<-ctx.Done()
	logger.Info("parsevk-scheduler stopped")
}

// queueOrNoop возвращает publisher либо заглушку, если RabbitMQ
// недоступен: задачи подберёт worker через polling.
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
