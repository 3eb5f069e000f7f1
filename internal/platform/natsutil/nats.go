package natsutil

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eventdesk/roster/internal/messaging"
)

type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

func ConnectJetStream(url, name string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	if err := messaging.EnsureStreams(js); err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, JS: js}, nil
}

// ConnectJetStreamWithRetry retries ConnectJetStream every 500ms until it
// succeeds, ctx ends or timeout elapses.
func ConnectJetStreamWithRetry(ctx context.Context, url, name string, timeout time.Duration) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		client, err := ConnectJetStream(url, name)
		if err == nil {
			return client, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect jetstream timeout after %s: %w", timeout, lastErr)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

type JetStreamPublisher struct {
	JS nats.JetStreamContext
}

func (p JetStreamPublisher) Publish(subject string, payload []byte) error {
	_, err := p.JS.Publish(subject, payload)
	return err
}

// Subscribe attaches an ephemeral, deliver-new consumer to subject. Each
// message is acked after handler returns.
func (c *Client) Subscribe(subject string, handler func(data []byte)) (*nats.Subscription, error) {
	return c.JS.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
		_ = msg.Ack()
	}, nats.DeliverNew(), nats.AckExplicit())
}

// SubscribeDurable binds a durable, manually acked queue consumer that
// starts from the first stored message. handler must Ack, Nak or Term.
func (c *Client) SubscribeDurable(subject, durable string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return c.JS.QueueSubscribe(subject, durable, handler,
		nats.Durable(durable), nats.ManualAck(), nats.DeliverAll())
}
