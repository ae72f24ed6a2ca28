package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr         string
	Password     string
	UsersHashKey string
	EventsTTL    time.Duration
}

// Client оборачивает соединение с Redis. Кэш используется для быстрой
// проверки basic auth и для кэширования ответов листинга событий.
type Client struct {
	rdb          *redis.Client
	usersHashKey string
	eventsTTL    time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", cfg.Addr)
	return &Client{
		rdb:          rdb,
		usersHashKey: cfg.UsersHashKey,
		eventsTTL:    cfg.EventsTTL,
	}, nil
}

// GetUserIDByAuth возвращает user_id по закэшированному значению
// "email:sha256(password)". Пустая строка означает промах кэша.
func (c *Client) GetUserIDByAuth(ctx context.Context, authKey string) (string, error) {
	val, err := c.rdb.HGet(ctx, c.usersHashKey, authKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cached auth: %w", err)
	}
	return val, nil
}

// SetUserAuth кэширует успешную аутентификацию
func (c *Client) SetUserAuth(ctx context.Context, authKey, userID string) error {
	if err := c.rdb.HSet(ctx, c.usersHashKey, authKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to cache auth: %w", err)
	}
	return nil
}

// GetEventsPage возвращает закэшированный JSON страницы листинга событий
func (c *Client) GetEventsPage(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached events page: %w", err)
	}
	return val, nil
}

// SetEventsPage кэширует JSON страницы листинга с коротким TTL
func (c *Client) SetEventsPage(ctx context.Context, key string, payload []byte) error {
	if err := c.rdb.Set(ctx, key, payload, c.eventsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache events page: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
