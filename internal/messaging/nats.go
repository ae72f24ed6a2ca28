package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"
)

type Config struct {
	URL       string
	ClusterID string
	ClientID  string
}

// Client оборачивает соединение с NATS Streaming
type Client struct {
	conn stan.Conn
}

func NewClient(cfg Config) (*Client, error) {
	conn, err := stan.Connect(cfg.ClusterID, cfg.ClientID,
		stan.NatsURL(cfg.URL),
		stan.ConnectWait(10*time.Second),
		stan.Pings(10, 5),
		stan.SetConnectionLostHandler(func(_ stan.Conn, err error) {
			slog.Error("NATS connection lost", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS streaming: %w", err)
	}

	slog.Info("Connected to NATS streaming", "url", cfg.URL, "cluster_id", cfg.ClusterID, "client_id", cfg.ClientID)
	return &Client{conn: conn}, nil
}

// Publish сериализует событие в JSON и публикует его в указанный subject.
// Ошибки публикации логируются, но не останавливают основной поток.
func (c *Client) Publish(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	slog.Debug("Published event", "subject", subject)
	return nil
}

// Subscribe подписывается на subject с durable-именем
func (c *Client) Subscribe(subject, durableName string, handler stan.MsgHandler) (stan.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, handler,
		stan.DurableName(durableName),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// SubscribeQueue подписывается на subject в составе queue-группы, чтобы
// сообщение обрабатывал только один экземпляр consumers
func (c *Client) SubscribeQueue(subject, queueGroup, durableName string, handler stan.MsgHandler) (stan.Subscription, error) {
	sub, err := c.conn.QueueSubscribe(subject, queueGroup, handler,
		stan.DurableName(durableName),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
