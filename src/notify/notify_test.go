package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgee-monitor/src/metrics"
	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
	"budgee-monitor/src/notify"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func sample() monitor.Notification {
	at := time.Date(2026, time.October, 17, 8, 0, 0, 0, time.UTC)
	return monitor.NewNotification(uuid.New(), 42, monitor.BudgetExceeded{
		BudgetID:   3,
		Category:   "Dining",
		Period:     models.BudgetMonthly,
		Limit:      decimal.NewFromInt(200),
		Spent:      decimal.NewFromInt(250),
		ExceededBy: decimal.NewFromInt(50),
	}, at)
}

type captureDispatcher struct {
	mu    sync.Mutex
	got   []monitor.Notification
	err   error
	block chan struct{}
}

func (c *captureDispatcher) Name() string { return "capture" }

func (c *captureDispatcher) Dispatch(ctx context.Context, n monitor.Notification) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return c.err
}

func (c *captureDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestQueue_DeliversAndDrainsOnClose(t *testing.T) {
	d := &captureDispatcher{}
	q := notify.NewQueue(d, notify.QueueConfig{Workers: 2, Buffer: 10}, quiet, metrics.New(prometheus.NewRegistry()))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Notify(context.Background(), sample()))
	}
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, 5, d.count())
	assert.Equal(t, int64(5), q.Stats().Dispatched)
	assert.ErrorIs(t, q.Notify(context.Background(), sample()), notify.ErrQueueClosed)
}

func TestQueue_FullBufferDrops(t *testing.T) {
	d := &captureDispatcher{block: make(chan struct{})}
	q := notify.NewQueue(d, notify.QueueConfig{Workers: 1, Buffer: 1, Timeout: time.Minute}, quiet, nil)

	// One held by the worker, one in the buffer; keep going until a drop.
	var dropped bool
	for i := 0; i < 5; i++ {
		if err := q.Notify(context.Background(), sample()); errors.Is(err, notify.ErrQueueFull) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped)
	assert.GreaterOrEqual(t, q.Stats().Dropped, int64(1))

	close(d.block)
	require.NoError(t, q.Close(context.Background()))
}

func TestQueue_DispatchFailureIsCounted(t *testing.T) {
	d := &captureDispatcher{err: errors.New("boom")}
	q := notify.NewQueue(d, notify.QueueConfig{Workers: 1}, quiet, nil)

	require.NoError(t, q.Notify(context.Background(), sample()))
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int64(1), q.Stats().Failed)
	assert.Equal(t, int64(0), q.Stats().Dispatched)
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	bad := &captureDispatcher{err: errors.New("down")}
	good := &captureDispatcher{}
	m := notify.Multi{bad, good}

	err := m.Dispatch(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture: down")
	assert.Equal(t, 1, good.count())
	assert.Equal(t, "capture+capture", m.Name())
}

func TestLogDispatcher(t *testing.T) {
	d := notify.NewLogDispatcher(quiet)
	assert.NoError(t, d.Dispatch(context.Background(), sample()))
	assert.Equal(t, "log", d.Name())
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATSDispatcher_PublishesPerKindSubject(t *testing.T) {
	pub := &fakePublisher{}
	d := notify.NewNATSDispatcher(pub, "")
	n := sample()

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, "budgee.notify.BudgetExceeded", pub.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, n.ID.String(), decoded["id"])
	assert.Equal(t, "BudgetExceeded", decoded["kind"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "50", payload["exceeded_by"])

	pub.err = errors.New("no responders")
	assert.Error(t, d.Dispatch(context.Background(), n))
}

func TestWebhookDispatcher_SignsBody(t *testing.T) {
	secret := []byte("s3cret")
	type result struct {
		ok  bool
		err error
	}
	results := make(chan result, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		ok, err := notify.VerifyWebhook(body, headers, secret, time.Now())
		results <- result{ok, err}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := notify.NewWebhookDispatcher(srv.URL, string(secret), srv.Client())
	require.NoError(t, d.Dispatch(context.Background(), sample()))
	res := <-results
	require.NoError(t, res.err)
	assert.True(t, res.ok)
}

func TestWebhookDispatcher_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := notify.NewWebhookDispatcher(srv.URL, "x", srv.Client())
	err := d.Dispatch(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestVerifyWebhook_Rejects(t *testing.T) {
	secret := []byte("s3cret")
	now := time.Date(2026, time.October, 17, 8, 0, 0, 0, time.UTC)
	body := []byte(`{"kind":"GoalClosed"}`)
	token, err := notify.SignWebhook(body, secret, now)
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    []byte
		headers map[string]string
		secret  []byte
		now     time.Time
	}{
		{"missing header", body, map[string]string{}, secret, now},
		{"tampered body", []byte(`{"kind":"BudgetExceeded"}`), map[string]string{"budgee-verification": token}, secret, now},
		{"wrong secret", body, map[string]string{notify.VerificationHeader: token}, []byte("other"), now},
		{"too old", body, map[string]string{notify.VerificationHeader: token}, secret, now.Add(10 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := notify.VerifyWebhook(tt.body, tt.headers, tt.secret, tt.now)
			assert.False(t, ok)
			assert.Error(t, err)
		})
	}

	ok, err := notify.VerifyWebhook(body, map[string]string{"BUDGEE-VERIFICATION": token}, secret, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}
