package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensebot/internal/core"
	"expensebot/internal/log"
)

// channel is the subset of *amqp091.Channel the client publishes with.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Client publishes ledger events to a topic exchange.
type Client struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	keyPrefix    string
	logger       *log.Logger
}

func NewClient(url, exchangeName, keyPrefix string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	c := newClient(ch, exchangeName, keyPrefix, logger)
	c.conn = conn
	return c, nil
}

func newClient(ch channel, exchangeName, keyPrefix string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentAMQP})
	}
	return &Client{channel: ch, exchangeName: exchangeName, keyPrefix: keyPrefix, logger: logger}
}

func (c *Client) routingKey(suffix string) string {
	if c.keyPrefix == "" {
		return suffix
	}
	return c.keyPrefix + "." + suffix
}

// ExpenseLogged publishes an ExpenseLoggedMessage.
func (c *Client) ExpenseLogged(ctx context.Context, ledger string, e core.Expense) error {
	body, err := NewExpenseLoggedMessage(ledger, e).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, KeyExpenseLogged, body)
}

// LedgerReset publishes a LedgerResetMessage.
func (c *Client) LedgerReset(ctx context.Context, ledger string, target core.Money) error {
	body, err := NewLedgerResetMessage(ledger, target).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, KeyLedgerReset, body)
}

func (c *Client) publish(ctx context.Context, suffix string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := c.routingKey(suffix)
	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		key,            // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	c.logger.DebugContext(ctx, "Published ledger event",
		"exchange", c.exchangeName,
		"routing_key", key,
		log.FieldOperation, log.OpPublish)
	return nil
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
