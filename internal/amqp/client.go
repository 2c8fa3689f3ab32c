package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"expensewizard/internal/log"
	"expensewizard/internal/sheets"
)

// publisher is the subset of *amqp091.Channel used to publish.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	pub          publisher
	exchangeName string
	queueName    string
	logger       *log.Logger
	newID        func() string
}

var _ sheets.ExternalSync = (*Client)(nil)

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := newClient(channel, exchangeName, queueName, logger)
	client.conn = conn
	client.channel = channel

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func newClient(pub publisher, exchangeName, queueName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		pub:          pub,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
		newID:        uuid.NewString,
	}
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on the direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// SyncExpense hands doc to the broker for the worker to mirror. The external
// id is the message id, since the sheet row does not exist yet.
func (c *Client) SyncExpense(ctx context.Context, doc sheets.Document) (string, error) {
	msg := NewExpenseSyncMessage(c.newID(), doc)
	body, err := msg.ToJSON()
	if err != nil {
		return "", sheets.SchemaError(fmt.Errorf("marshal message: %w", err))
	}

	err = c.pub.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		if errors.Is(err, amqp091.ErrClosed) {
			return "", sheets.NetworkError(fmt.Errorf("publish on closed channel: %w", err))
		}
		var aerr *amqp091.Error
		if errors.As(err, &aerr) && aerr.Code == amqp091.AccessRefused {
			return "", sheets.AuthError(fmt.Errorf("publish message: %w", err))
		}
		return "", sheets.NetworkError(fmt.Errorf("publish message: %w", err))
	}

	c.logger.InfoContext(ctx, "Published expense sync message",
		log.FieldExpenseID, doc.ID,
		"message_id", msg.MessageID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return "amqp:" + msg.MessageID, nil
}

// Handler mirrors one decoded message.
type Handler func(ctx context.Context, msg *ExpenseSyncMessage) error

// ConsumeExpenseSync delivers messages to handler until ctx is done or the
// channel closes.
func (c *Client) ConsumeExpenseSync(ctx context.Context, handler Handler) error {
	if c.channel == nil {
		return errors.New("amqp channel not open")
	}
	msgs, err := c.channel.ConsumeWithContext(
		ctx,
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming expense sync messages", "queue", c.queueName)
	return c.consume(ctx, msgs, handler)
}

func (c *Client) consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks successful messages and drops failed ones without
// requeueing; the record is already safe in the primary store.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	msg, err := ExpenseSyncMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode message",
			"message_id", delivery.MessageId,
			log.FieldError, err)
		_ = delivery.Nack(false, false)
		return
	}

	start := time.Now()
	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to mirror expense",
			log.FieldExpenseID, msg.Document.ID,
			log.FieldErrorType, string(sheets.KindOf(err)),
			log.FieldError, err)
		_ = delivery.Nack(false, false)
		return
	}

	_ = delivery.Ack(false)
	c.logger.InfoContext(ctx, "Mirrored expense from queue",
		log.FieldExpenseID, msg.Document.ID,
		log.FieldDuration, time.Since(start).Milliseconds())
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
