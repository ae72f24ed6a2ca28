package jobs

import (
	"context"
	"log/slog"
	"time"

	"tulpar/internal/repository"
)

// IntentExpirationJob периодически отменяет платежные intents, которые так и
// не были оплачены, и следит за количеством платежей, ожидающих возврата.
type IntentExpirationJob struct {
	payments      repository.PaymentIntentRepository
	intentTTL     time.Duration
	sweepInterval time.Duration
	ticker        *time.Ticker
	done          chan bool
}

func NewIntentExpirationJob(payments repository.PaymentIntentRepository, intentTTL, sweepInterval time.Duration) *IntentExpirationJob {
	return &IntentExpirationJob{
		payments:      payments,
		intentTTL:     intentTTL,
		sweepInterval: sweepInterval,
		done:          make(chan bool),
	}
}

// Start запускает фоновую очистку
func (j *IntentExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting intent expiration job",
		"sweep_interval", j.sweepInterval.String(), "intent_ttl", j.intentTTL.String())

	j.ticker = time.NewTicker(j.sweepInterval)

	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Intent expiration job stopped")
				return
			}
		}
	}()
}

// Stop останавливает фоновую очистку
func (j *IntentExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *IntentExpirationJob) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.intentTTL)

	expired, err := j.payments.ExpireStale(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to expire stale payment intents", "error", err)
		return
	}
	if expired > 0 {
		slog.Info("Expired stale payment intents", "count", expired, "cutoff", cutoff)
	}

	// refund_required не обрабатывается автоматически, поэтому сигналим о
	// накопившихся платежах в логи
	pending, err := j.payments.CountByStatus(ctx, "refund_required")
	if err != nil {
		slog.Error("Failed to count refund_required intents", "error", err)
		return
	}
	if pending > 0 {
		slog.Warn("Payments awaiting refund", "count", pending)
	}
}
