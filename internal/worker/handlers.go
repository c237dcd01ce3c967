package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andr-235/parseVK-sub006/internal/mq"
	"github.com/andr-235/parseVK-sub006/internal/repo"
)

// handleTaskExecute обрабатывает job из очереди tasks.execute.
//
// Исход выполнения:
//   - успех или отмена — ack;
//   - задача удалена — ack (job осиротел);
//   - сбой при attempt < maxAttempts — перепубликация с attempt+1
//     после backoff, затем ack исходного сообщения;
//   - сбой на последней попытке — ошибка наружу, consumer
//     отправляет сообщение в DLQ.
func (w *Worker) handleTaskExecute(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskExecutePayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.execute payload", "error", err)
		return err
	}

	w.logger.Debug("received task.execute job",
		"task_id", payload.TaskID,
		"attempt", payload.Attempt,
	)

	runErr := w.runner.Run(ctx, payload.TaskID)
	if runErr == nil {
		return nil
	}

	if errors.Is(runErr, repo.ErrNotFound) {
		w.logger.Debug("task gone, dropping job", "task_id", payload.TaskID)
		return nil
	}

	if payload.Attempt >= w.maxAttempts {
		w.logger.Error("task attempts exhausted, dead-lettering",
			"task_id", payload.TaskID,
			"attempt", payload.Attempt,
			"error", runErr,
		)
		return runErr
	}

	delay := w.backoff(payload.Attempt)
	w.logger.Warn("task failed, re-enqueueing",
		"task_id", payload.TaskID,
		"attempt", payload.Attempt,
		"delay", delay,
		"error", runErr,
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := w.publisher.PublishTaskExecute(ctx, payload.TaskID, payload.Attempt+1); err != nil {
		// Перепубликация не удалась — пусть исходное сообщение уйдёт
		// в DLQ, иначе job потеряется совсем.
		return fmt.Errorf("republish task %s: %w", payload.TaskID, err)
	}

	return nil
}

// backoff вычисляет экспоненциальную задержку перед перепубликацией.
func (w *Worker) backoff(attempt int) time.Duration {
	delay := w.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > w.maxDelay {
			return w.maxDelay
		}
	}
	if delay > w.maxDelay {
		return w.maxDelay
	}
	return delay
}
