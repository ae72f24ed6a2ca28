package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type NotifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NotifierClient отправляет уведомления пользователям через внешний сервис
// рассылки. Вызывается из consumers, а не из пути запроса.
type NotifierClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewNotifierClient(cfg NotifierConfig) *NotifierClient {
	return &NotifierClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type notification struct {
	UserID   int64  `json:"user_id"`
	Template string `json:"template"`
	EventID  int64  `json:"event_id"`
}

func (c *NotifierClient) send(ctx context.Context, n notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/notifications", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *NotifierClient) NotifyRegistered(ctx context.Context, userID, eventID int64) error {
	return c.send(ctx, notification{UserID: userID, Template: "registration_confirmed", EventID: eventID})
}

func (c *NotifierClient) NotifyWaiting(ctx context.Context, userID, eventID int64) error {
	return c.send(ctx, notification{UserID: userID, Template: "added_to_waitlist", EventID: eventID})
}

func (c *NotifierClient) NotifyPromoted(ctx context.Context, userID, eventID int64) error {
	return c.send(ctx, notification{UserID: userID, Template: "promoted_from_waitlist", EventID: eventID})
}

func (c *NotifierClient) NotifyRefundRequired(ctx context.Context, userID, eventID int64) error {
	return c.send(ctx, notification{UserID: userID, Template: "payment_refund_required", EventID: eventID})
}
