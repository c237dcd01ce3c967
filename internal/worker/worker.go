package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andr-235/parseVK-sub006/internal/domain"
	"github.com/andr-235/parseVK-sub006/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 10
	defaultPrefetch     = 1
	defaultMaxAttempts  = 3
	defaultRetryDelay   = 5 * time.Second
	defaultMaxDelay     = 5 * time.Minute
)

// Runner выполняет одну задачу целиком. Реализуется оркестратором.
type Runner interface {
	Run(ctx context.Context, taskID uuid.UUID) error
}

// PendingLister отдаёт PENDING задачи для polling fallback'а.
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]domain.Task, error)
}

// JobPublisher — перепубликация job'ов для retry на уровне очереди.
type JobPublisher interface {
	PublishTaskExecute(ctx context.Context, taskID uuid.UUID, attempt int) error
}

// Worker выполняет задачи парсинга из очереди.
type Worker struct {
	runner    Runner
	tasks     PendingLister
	publisher JobPublisher
	conn      *mq.Connection

	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	retryDelay   time.Duration
	maxDelay     time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Runner    Runner
	Tasks     PendingLister
	Publisher JobPublisher
	Conn      *mq.Connection

	// PollInterval — интервал polling fallback (default: 30s).
	PollInterval time.Duration

	// BatchSize — количество задач за один poll (default: 10).
	BatchSize int

	// MaxAttempts — попытки выполнения job'а до DLQ (default: 3).
	MaxAttempts int

	// RetryDelay — базовая задержка перед перепубликацией (default: 5s).
	RetryDelay time.Duration

	// MaxDelay — потолок задержки (default: 5m).
	MaxDelay time.Duration

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runner:       cfg.Runner,
		tasks:        cfg.Tasks,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		maxDelay:     maxDelay,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для tasks.execute
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"max_attempts", w.maxAttempts,
	)

	// Без RabbitMQ worker живёт только на polling.
	if w.conn != nil {
		// Одна задача за раз: прогон задачи длинный, prefetch > 1 только
		// держал бы чужие job'ы невидимыми для других воркеров.
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksExecute),
			Handler:  w.handleTaskExecute,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("task consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling fallback'а.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем задачи, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
//
// Основной путь доставки — очередь; polling подстраховывает на случай
// недоступного брокера. PENDING задача, чей job всё-таки доедет позже,
// будет отброшена как повторная доставка.
func (w *Worker) poll(ctx context.Context) {
	pending, err := w.tasks.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending tasks", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	w.logger.Debug("poll found pending tasks", "count", len(pending))

	for i := range pending {
		if err := w.runner.Run(ctx, pending[i].ID); err != nil {
			w.logger.Error("failed to process task from poll",
				"task_id", pending[i].ID,
				"error", err,
			)
		}
	}
}
