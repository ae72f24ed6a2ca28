package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"tulpar/internal/models"
	"tulpar/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory fakes ---

type pairKey struct {
	eventID int64
	userID  int64
}

type fakeEventRepo struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int64]*models.Event)}
}

func (r *fakeEventRepo) Create(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *fakeEventRepo) GetByID(_ context.Context, id int64) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (r *fakeEventRepo) List(_ context.Context, _, _ string, _, _ int) ([]models.Event, error) {
	return nil, nil
}

func (r *fakeEventRepo) TryIncrementRegistered(_ context.Context, eventID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return false, nil
	}
	if event.IsClosed || event.RegisteredCount >= event.MaxCapacity {
		return false, nil
	}
	event.RegisteredCount++
	return true, nil
}

func (r *fakeEventRepo) DecrementRegistered(_ context.Context, eventID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event, ok := r.events[eventID]; ok && event.RegisteredCount > 0 {
		event.RegisteredCount--
	}
	return nil
}

func (r *fakeEventRepo) ReconcileRegisteredCounts(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeRegistrationRepo struct {
	mu     sync.Mutex
	nextID int64
	pairs  map[pairKey]*models.Registration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{pairs: make(map[pairKey]*models.Registration)}
}

func (r *fakeRegistrationRepo) Create(_ context.Context, eventID, userID int64) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{eventID, userID}
	if _, ok := r.pairs[key]; ok {
		return nil, models.ErrDuplicateRegistration
	}
	r.nextID++
	reg := &models.Registration{ID: r.nextID, EventID: eventID, UserID: userID, CreatedAt: time.Now()}
	r.pairs[key] = reg
	return reg, nil
}

func (r *fakeRegistrationRepo) Delete(_ context.Context, eventID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{eventID, userID}
	if _, ok := r.pairs[key]; !ok {
		return models.ErrNotRegistered
	}
	delete(r.pairs, key)
	return nil
}

func (r *fakeRegistrationRepo) Exists(_ context.Context, eventID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pairs[pairKey{eventID, userID}]
	return ok, nil
}

func (r *fakeRegistrationRepo) ListByUser(_ context.Context, userID int64) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Registration
	for _, reg := range r.pairs {
		if reg.UserID == userID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (r *fakeRegistrationRepo) count(eventID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key := range r.pairs {
		if key.eventID == eventID {
			n++
		}
	}
	return n
}

type fakeWaitlistRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []*models.WaitlistEntry
}

func newFakeWaitlistRepo() *fakeWaitlistRepo {
	return &fakeWaitlistRepo{}
}

func (r *fakeWaitlistRepo) Enqueue(_ context.Context, eventID, userID int64) (*models.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.EventID == eventID && entry.UserID == userID {
			return nil, models.ErrDuplicateWaitlistEntry
		}
	}
	r.nextID++
	entry := &models.WaitlistEntry{ID: r.nextID, EventID: eventID, UserID: userID, JoinedAt: time.Now()}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *fakeWaitlistRepo) DequeueOldest(_ context.Context, eventID int64) (*models.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.entries {
		if entry.EventID == eventID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return entry, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeWaitlistRepo) Remove(_ context.Context, eventID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.entries {
		if entry.EventID == eventID && entry.UserID == userID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *fakeWaitlistRepo) ListByUser(_ context.Context, userID int64) ([]models.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WaitlistEntry
	for _, entry := range r.entries {
		if entry.UserID == userID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (r *fakeWaitlistRepo) count(eventID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entry := range r.entries {
		if entry.EventID == eventID {
			n++
		}
	}
	return n
}

type fakePaymentRepo struct {
	mu      sync.Mutex
	nextID  int64
	intents map[string]*models.PaymentIntent // keyed by provider_order_id
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{intents: make(map[string]*models.PaymentIntent)}
}

func (r *fakePaymentRepo) Create(_ context.Context, intent *models.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	intent.ID = r.nextID
	intent.CreatedAt = time.Now()
	copied := *intent
	r.intents[intent.ProviderOrderID] = &copied
	return nil
}

func (r *fakePaymentRepo) GetByInternalOrderID(_ context.Context, internalOrderID string) (*models.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.InternalOrderID == internalOrderID {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, models.ErrNoMatchingIntent
}

func (r *fakePaymentRepo) GetByProviderOrderID(_ context.Context, providerOrderID string) (*models.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[providerOrderID]
	if !ok {
		return nil, models.ErrNoMatchingIntent
	}
	copied := *intent
	return &copied, nil
}

func (r *fakePaymentRepo) MarkPaid(_ context.Context, providerOrderID, providerPaymentID, signature string, allowPaid bool) (*models.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[providerOrderID]
	if !ok {
		return nil, models.ErrNoMatchingIntent
	}
	eligible := intent.Status == models.IntentStatusCreated ||
		(allowPaid && intent.Status == models.IntentStatusPaid)
	if !eligible {
		return nil, models.ErrNoMatchingIntent
	}
	intent.Status = models.IntentStatusPaid
	intent.ProviderPaymentID = &providerPaymentID
	if signature != "" {
		intent.Signature = &signature
	}
	copied := *intent
	return &copied, nil
}

func (r *fakePaymentRepo) MarkRefundRequired(_ context.Context, internalOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.InternalOrderID == internalOrderID && intent.Status == models.IntentStatusPaid {
			intent.Status = models.IntentStatusRefundRequired
			return nil
		}
	}
	return models.ErrNoMatchingIntent
}

func (r *fakePaymentRepo) CancelForAttempt(_ context.Context, eventID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.EventID == eventID && intent.UserID == userID &&
			(intent.Status == models.IntentStatusCreated || intent.Status == models.IntentStatusPaid) {
			intent.Status = models.IntentStatusCancelled
		}
	}
	return nil
}

func (r *fakePaymentRepo) ExpireStale(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, intent := range r.intents {
		if intent.Status == models.IntentStatusCreated && intent.CreatedAt.Before(before) {
			intent.Status = models.IntentStatusCancelled
			n++
		}
	}
	return n, nil
}

func (r *fakePaymentRepo) CountByStatus(_ context.Context, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, intent := range r.intents {
		if intent.Status == status {
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *fakePublisher) Publish(subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

type fakeGateway struct {
	mu sync.Mutex
	n  int
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ string, _ int64, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("order_%d", g.n), nil
}

// --- fixture ---

type fixture struct {
	svc      *RegistrationService
	events   *fakeEventRepo
	regs     *fakeRegistrationRepo
	waitlist *fakeWaitlistRepo
	payments *fakePaymentRepo
	pub      *fakePublisher
}

var testSecrets = Secrets{
	CheckoutSecret: "checkout_secret",
	WebhookSecret:  "webhook_secret",
}

func newFixture() *fixture {
	events := newFakeEventRepo()
	regs := newFakeRegistrationRepo()
	waitlist := newFakeWaitlistRepo()
	paymentIntents := newFakePaymentRepo()
	pub := &fakePublisher{}

	svc := NewRegistrationService(events, regs, waitlist, paymentIntents,
		pub, &fakeGateway{}, testSecrets)
	return &fixture{svc: svc, events: events, regs: regs, waitlist: waitlist, payments: paymentIntents, pub: pub}
}

func (f *fixture) addEvent(t *testing.T, capacity int, price int64) int64 {
	t.Helper()
	event := &models.Event{
		Title:         "Test Event",
		MaxCapacity:   capacity,
		Price:         price,
		Currency:      "INR",
		DatetimeStart: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, f.events.Create(context.Background(), event))
	return event.ID
}

func (f *fixture) registeredCount(t *testing.T, eventID int64) int {
	t.Helper()
	event, err := f.events.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	return event.RegisteredCount
}

func webhookBody(t *testing.T, orderID, paymentID string) ([]byte, string) {
	t.Helper()
	payload := models.PaymentWebhookPayload{
		Event: "payment.captured",
		Payload: models.PaymentWebhookWrapper{
			Payment: models.PaymentWebhookEntity{
				Entity: models.PaymentEntity{
					ID:      paymentID,
					OrderID: orderID,
					Status:  "captured",
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body, webhookSignature(body)
}

func webhookSignature(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecrets.WebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// --- registration ---

func TestRegister_FreeEventGrantsSeat(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 0)

	resp, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRegistered, resp.Status)
	assert.Equal(t, 1, f.registeredCount(t, eventID))
}

func TestRegister_FullEventGoesToWaitlist(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 0)

	_, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)

	resp, err := f.svc.Register(context.Background(), eventID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusWaiting, resp.Status)
	assert.Equal(t, 1, f.registeredCount(t, eventID))
	assert.Equal(t, 1, f.waitlist.count(eventID))
}

func TestRegister_DuplicateRejected(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 0)

	_, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), eventID, 1)
	assert.ErrorIs(t, err, models.ErrAlreadyRegistered)
	assert.Equal(t, 1, f.registeredCount(t, eventID))
}

func TestRegister_DuplicateWaitlistRejected(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 0)

	_, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), eventID, 2)
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), eventID, 2)
	assert.ErrorIs(t, err, models.ErrDuplicateWaitlistEntry)
}

func TestRegister_ClosedEvent(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 0)
	f.events.events[eventID].IsClosed = true

	_, err := f.svc.Register(context.Background(), eventID, 1)
	assert.ErrorIs(t, err, models.ErrEventClosed)
}

func TestRegister_UnknownEvent(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Register(context.Background(), 999, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegister_PaidEventCreatesIntent(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)

	resp, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusPaymentPending, resp.Status)
	assert.NotEmpty(t, resp.InternalOrderID)
	assert.NotEmpty(t, resp.ProviderOrderID)
	assert.Equal(t, int64(50000), resp.Amount)

	// No seat is held while the payment is pending
	assert.Equal(t, 0, f.registeredCount(t, eventID))

	intent, err := f.payments.GetByInternalOrderID(context.Background(), resp.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusCreated, intent.Status)
}

// Платные события не используют лист ожидания: заполненное событие
// отклоняет регистрацию и не создает платежный интент.
func TestRegister_PaidEventFullRejected(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 50000)

	pending := registerPaid(t, f, eventID, 1)
	verifyPaid(t, f, pending)
	require.Equal(t, 1, f.registeredCount(t, eventID))

	_, err := f.svc.Register(context.Background(), eventID, 2)
	assert.ErrorIs(t, err, models.ErrEventFull)
	assert.Equal(t, 0, f.waitlist.count(eventID))

	open, err := f.payments.CountByStatus(context.Background(), models.IntentStatusCreated)
	require.NoError(t, err)
	assert.Zero(t, open)

	// The rejected user holds no seat and no waitlist spot
	seated, err := f.regs.Exists(context.Background(), eventID, 2)
	require.NoError(t, err)
	assert.False(t, seated)
}

func TestRegister_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture()
	const capacity = 10
	const attempts = 50
	eventID := f.addEvent(t, capacity, 0)

	var wg sync.WaitGroup
	for userID := int64(1); userID <= attempts; userID++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), eventID, uid)
			assert.NoError(t, err)
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, capacity, f.registeredCount(t, eventID))
	assert.Equal(t, capacity, f.regs.count(eventID))
	assert.Equal(t, attempts-capacity, f.waitlist.count(eventID))
}

// --- payment verification ---

func registerPaid(t *testing.T, f *fixture, eventID, userID int64) *models.RegisterResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), eventID, userID)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationStatusPaymentPending, resp.Status)
	return resp
}

func verifyPaid(t *testing.T, f *fixture, pending *models.RegisterResponse) {
	t.Helper()
	sig := payments.CheckoutSignature(testSecrets.CheckoutSecret, pending.ProviderOrderID, "pay_"+pending.InternalOrderID)
	resp, err := f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_" + pending.InternalOrderID,
		Signature:         sig,
	})
	require.NoError(t, err)
	require.Equal(t, models.RegistrationStatusRegistered, resp.Status)
}

func TestVerifyPayment_GrantsSeat(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	sig := payments.CheckoutSignature(testSecrets.CheckoutSecret, pending.ProviderOrderID, "pay_1")
	resp, err := f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         sig,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRegistered, resp.Status)
	assert.Equal(t, 1, f.registeredCount(t, eventID))

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusPaid, intent.Status)
}

func TestVerifyPayment_TamperedSignature(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	_, err := f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         "forged",
	})
	assert.ErrorIs(t, err, models.ErrTamperedPayment)
	assert.Equal(t, 0, f.registeredCount(t, eventID))
}

func TestVerifyPayment_MismatchedOrder(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	sig := payments.CheckoutSignature(testSecrets.CheckoutSecret, "order_other", "pay_1")
	_, err := f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   "order_other",
		ProviderPaymentID: "pay_1",
		Signature:         sig,
	})
	assert.ErrorIs(t, err, models.ErrNoMatchingIntent)
}

func TestVerifyPayment_NoSeatMarksRefundRequired(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 50000)
	pending := registerPaid(t, f, eventID, 1)

	// The last seat goes to someone else while the payment is in flight.
	f.events.events[eventID].Price = 0
	_, err := f.svc.Register(context.Background(), eventID, 2)
	require.NoError(t, err)

	sig := payments.CheckoutSignature(testSecrets.CheckoutSecret, pending.ProviderOrderID, "pay_1")
	_, err = f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         sig,
	})
	assert.ErrorIs(t, err, models.ErrSeatUnavailableRefundRequired)
	assert.Equal(t, 1, f.registeredCount(t, eventID))

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusRefundRequired, intent.Status)
}

// --- webhooks ---

// The webhook only records the payment fact. The seat itself is granted
// when the client verifies the checkout.
func TestWebhook_MarksIntentPaidWithoutSeat(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	body, sig := webhookBody(t, pending.ProviderOrderID, "pay_1")
	result, err := f.svc.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookResultApplied, result)

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusPaid, intent.Status)
	// No checkout signature arrives over the webhook channel
	assert.Nil(t, intent.Signature)
	assert.Equal(t, 0, f.registeredCount(t, eventID))
	assert.Equal(t, 0, f.regs.count(eventID))
}

func TestWebhook_ReplayIsDuplicate(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	body, sig := webhookBody(t, pending.ProviderOrderID, "pay_1")
	_, err := f.svc.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	result, err := f.svc.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookResultDuplicate, result)

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusPaid, intent.Status)
	assert.Equal(t, 0, f.registeredCount(t, eventID))
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	body, _ := webhookBody(t, pending.ProviderOrderID, "pay_1")
	_, err := f.svc.HandleWebhook(context.Background(), body, "bad_signature")
	assert.ErrorIs(t, err, models.ErrTamperedPayment)
	assert.Equal(t, 0, f.registeredCount(t, eventID))
}

func TestWebhook_UnknownOrder(t *testing.T) {
	f := newFixture()

	body, sig := webhookBody(t, "order_unknown", "pay_1")
	_, err := f.svc.HandleWebhook(context.Background(), body, sig)
	assert.ErrorIs(t, err, models.ErrNoMatchingIntent)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	f := newFixture()

	payload := models.PaymentWebhookPayload{
		Event: "payment.authorized",
		Payload: models.PaymentWebhookWrapper{
			Payment: models.PaymentWebhookEntity{
				Entity: models.PaymentEntity{ID: "pay_1", OrderID: "order_1", Status: "authorized"},
			},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	result, err := f.svc.HandleWebhook(context.Background(), body, webhookSignature(body))
	require.NoError(t, err)
	assert.Equal(t, WebhookResultIgnored, result)
}

// Webhook lands before the client verify: both succeed, one seat.
func TestWebhookThenVerify_OutOfOrder(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	body, sig := webhookBody(t, pending.ProviderOrderID, "pay_1")
	result, err := f.svc.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, WebhookResultApplied, result)

	checkoutSig := payments.CheckoutSignature(testSecrets.CheckoutSecret, pending.ProviderOrderID, "pay_1")
	resp, err := f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         checkoutSig,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRegistered, resp.Status)

	assert.Equal(t, 1, f.registeredCount(t, eventID))
	assert.Equal(t, 1, f.regs.count(eventID))
}

// Same ordering with a single seat: the webhook must not consume the last
// seat ahead of the verify, and a verified payer never ends up refunded.
func TestWebhookThenVerify_LastSeat(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 50000)
	pending := registerPaid(t, f, eventID, 1)

	body, sig := webhookBody(t, pending.ProviderOrderID, "pay_1")
	result, err := f.svc.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, WebhookResultApplied, result)

	checkoutSig := payments.CheckoutSignature(testSecrets.CheckoutSecret, pending.ProviderOrderID, "pay_1")
	resp, err := f.svc.VerifyPayment(context.Background(), &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         checkoutSig,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRegistered, resp.Status)
	assert.Equal(t, 1, f.registeredCount(t, eventID))

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusPaid, intent.Status)
	// The verify call backfills the checkout signature the webhook lacked
	require.NotNil(t, intent.Signature)
	assert.Equal(t, checkoutSig, *intent.Signature)
}

// A retried verify for an already seated user succeeds without double
// booking or flipping the intent to refund_required.
func TestVerifyPayment_RetryAfterSeated(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 50000)
	pending := registerPaid(t, f, eventID, 1)

	req := &models.VerifyPaymentRequest{
		InternalOrderID:   pending.InternalOrderID,
		ProviderOrderID:   pending.ProviderOrderID,
		ProviderPaymentID: "pay_1",
		Signature:         payments.CheckoutSignature(testSecrets.CheckoutSecret, pending.ProviderOrderID, "pay_1"),
	}
	_, err := f.svc.VerifyPayment(context.Background(), req)
	require.NoError(t, err)

	resp, err := f.svc.VerifyPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRegistered, resp.Status)
	assert.Equal(t, 1, f.registeredCount(t, eventID))
	assert.Equal(t, 1, f.regs.count(eventID))

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusPaid, intent.Status)
}

// --- cancellation and promotion ---

func TestCancel_PromotesOldestWaiter(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 0)

	_, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), eventID, 2)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), eventID, 3)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), eventID, 1))

	// FIFO: user 2 joined first and gets the seat, user 3 keeps waiting
	registered, err := f.regs.Exists(context.Background(), eventID, 2)
	require.NoError(t, err)
	assert.True(t, registered)
	assert.Equal(t, 1, f.registeredCount(t, eventID))
	assert.Equal(t, 1, f.waitlist.count(eventID))
}

func TestCancel_FromWaitlist(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 0)

	_, err := f.svc.Register(context.Background(), eventID, 1)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), eventID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), eventID, 2))
	assert.Equal(t, 0, f.waitlist.count(eventID))
	assert.Equal(t, 1, f.registeredCount(t, eventID))
}

func TestCancel_NotRegistered(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 0)

	err := f.svc.Cancel(context.Background(), eventID, 42)
	assert.ErrorIs(t, err, models.ErrNotRegistered)
}

func TestCancel_CancelsOpenIntents(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 10, 50000)
	pending := registerPaid(t, f, eventID, 1)

	// Pay and claim the seat, then cancel the registration
	verifyPaid(t, f, pending)

	require.NoError(t, f.svc.Cancel(context.Background(), eventID, 1))

	intent, err := f.payments.GetByInternalOrderID(context.Background(), pending.InternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusCancelled, intent.Status)
	assert.Equal(t, 0, f.registeredCount(t, eventID))
}

// После отмены платной регистрации место снова доступно следующему
// покупателю через обычный платежный цикл.
func TestCancel_PaidSeatBecomesAvailable(t *testing.T) {
	f := newFixture()
	eventID := f.addEvent(t, 1, 50000)

	first := registerPaid(t, f, eventID, 1)
	verifyPaid(t, f, first)

	_, err := f.svc.Register(context.Background(), eventID, 2)
	require.ErrorIs(t, err, models.ErrEventFull)

	require.NoError(t, f.svc.Cancel(context.Background(), eventID, 1))
	assert.Equal(t, 0, f.registeredCount(t, eventID))

	second := registerPaid(t, f, eventID, 2)
	verifyPaid(t, f, second)

	seated, err := f.regs.Exists(context.Background(), eventID, 2)
	require.NoError(t, err)
	assert.True(t, seated)
	assert.Equal(t, 1, f.registeredCount(t, eventID))
	assert.Equal(t, 0, f.waitlist.count(eventID))
}

func TestMyRegistrations(t *testing.T) {
	f := newFixture()
	firstEvent := f.addEvent(t, 10, 0)
	secondEvent := f.addEvent(t, 1, 0)

	_, err := f.svc.Register(context.Background(), firstEvent, 1)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), secondEvent, 2)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), secondEvent, 1)
	require.NoError(t, err)

	resp, err := f.svc.MyRegistrations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, resp.Registrations, 1)
	assert.Equal(t, firstEvent, resp.Registrations[0].EventID)
	require.Len(t, resp.Waitlist, 1)
	assert.Equal(t, secondEvent, resp.Waitlist[0].EventID)
}
