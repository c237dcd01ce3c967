package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно доставленное сообщение.
// Ненулевая ошибка превращается в nack без requeue: очередь объявлена
// с DLX, так что сообщение уходит в dead-letter, а не крутится по кругу.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — распарсенное сообщение вместе с сырой AMQP-доставкой.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Ack подтверждает обработку.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение. requeue=false уводит его в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// errStreamClosed — поток доставок закрылся (обычно разрыв соединения).
var errStreamClosed = errors.New("delivery stream closed")

// Consumer читает одну очередь и скармливает сообщения Handler'у.
// Разрыв соединения переживает через ReconnectNotify: подписка
// пересоздаётся на новом канале.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений брокер выдаёт
	// этому consumer'у одновременно (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокирует до отмены контекста, потребляя сообщения.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stream, err := c.openStream()
		if err != nil {
			c.logger.Error("consume setup failed", "queue", c.queue, "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consuming", "queue", c.queue)

		err = c.drain(ctx, stream)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errStreamClosed) {
			c.logger.Warn("delivery stream closed, waiting for reconnect", "queue", c.queue)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// awaitReconnect ждёт восстановления соединения или отмены контекста.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("connection restored, resubscribing", "queue", c.queue)
		return nil
	}
}

// openStream выставляет prefetch и подписывается на очередь.
func (c *Consumer) openStream() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	stream, err := ch.Consume(
		c.queue,
		"",    // consumer tag выдаёт брокер
		false, // ack вручную
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return stream, nil
}

// drain обрабатывает доставки до закрытия потока или отмены контекста.
func (c *Consumer) drain(ctx context.Context, stream <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-stream:
			if !ok {
				return errStreamClosed
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch распаковывает сообщение и передаёт его обработчику.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		raw.Nack(false, false)
		return
	}

	delivery := &Delivery{Message: msg, Raw: raw}

	c.logger.Debug("message received",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, delivery); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		// Retry на уровне очереди делает сам обработчик (перепубликация
		// с attempt+1). Ошибка отсюда значит, что retry-путь недоступен —
		// сообщение уходит в DLQ.
		delivery.Nack(false)
		return
	}

	delivery.Ack()
}

// ParsePayload приводит payload сообщения к конкретному типу.
// Payload после json.Unmarshal конверта — map[string]any, поэтому
// прогоняется через повторный marshal.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
