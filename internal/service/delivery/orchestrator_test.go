package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
	"github.com/brightlead/solar-lead-exchange-backend/internal/testutil"
)

type resultSpy struct {
	mu      sync.Mutex
	results []*Result
}

func (s *resultSpy) SaveDeliveryResult(_ context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

type mailerSpy struct {
	to       string
	subject  string
	filename string
	data     []byte
	err      error
}

func (m *mailerSpy) Send(_ context.Context, to, subject, _ string, filename string, data []byte) error {
	m.to, m.subject, m.filename, m.data = to, subject, filename, data
	return m.err
}

func deliveryRecord() Record {
	return Record{
		Lead:  testutil.QualifiedLead("session-1", 92),
		Score: testutil.Score("session-1", 92),
		Price: values.USDFromFloat(187.5),
	}
}

func newTestOrchestrator(store ResultStore, opts ...Option) *Orchestrator {
	base := []Option{
		WithClock(&lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}),
	}
	return NewOrchestrator(nil, store, append(base, opts...)...)
}

func TestDeliverAPISuccess(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testutil.Platform("solarmax-nyc", buyer.TierPremium)
	p.Delivery.Endpoint = srv.URL
	store := &resultSpy{}

	res := newTestOrchestrator(store).Deliver(context.Background(), p, deliveryRecord())

	assert.True(t, res.Delivered)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Error)
	assert.Equal(t, "Bearer test-secret", gotAuth)
	assert.Contains(t, string(gotBody), `"lead"`)
	require.Len(t, store.results, 1)
	assert.True(t, store.results[0].Delivered)
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := testutil.Platform("solarmax-nyc", buyer.TierPremium)
	p.Delivery.Endpoint = srv.URL

	res := newTestOrchestrator(nil, WithMaxRetries(1)).Deliver(context.Background(), p, deliveryRecord())

	assert.True(t, res.Delivered)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, calls)
}

func TestDeliverExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := testutil.Platform("solarmax-nyc", buyer.TierPremium)
	p.Delivery.Endpoint = srv.URL
	store := &resultSpy{}

	res := newTestOrchestrator(store, WithMaxRetries(1)).Deliver(context.Background(), p, deliveryRecord())

	assert.False(t, res.Delivered)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, res.Error, "403")
	require.Len(t, store.results, 1, "failed deliveries are recorded too")
	assert.False(t, store.results[0].Delivered)
}

func TestDeliverWebhookSignsRequest(t *testing.T) {
	var body []byte
	var sig, ts string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get("X-Webhook-Signature")
		ts = r.Header.Get("X-Webhook-Timestamp")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := testutil.Platform("solarmax-nyc", buyer.TierPremium)
	p.Delivery.Method = buyer.DeliveryWebhook
	p.Delivery.Endpoint = srv.URL

	res := newTestOrchestrator(nil).Deliver(context.Background(), p, deliveryRecord())

	assert.True(t, res.Delivered)
	require.NotEmpty(t, sig)
	assert.True(t, VerifySignature(body, "test-secret", ts, sig))
}

func TestDeliverEmailAttachesCSV(t *testing.T) {
	mailer := &mailerSpy{}
	p := testutil.Platform("solarmax-nyc", buyer.TierPremium)
	p.Delivery.Method = buyer.DeliveryEmail
	p.Delivery.To = "leads@solarmax.example.com"

	o := NewOrchestrator(mailer, nil,
		WithClock(&lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}))
	res := o.Deliver(context.Background(), p, deliveryRecord())

	assert.True(t, res.Delivered)
	assert.Equal(t, "leads@solarmax.example.com", mailer.to)
	assert.Equal(t, "leads.csv", mailer.filename)
	assert.Contains(t, string(mailer.data), "lead_id,score,tier")
}

func TestDeliverEmailWithoutMailer(t *testing.T) {
	p := testutil.Platform("solarmax-nyc", buyer.TierPremium)
	p.Delivery.Method = buyer.DeliveryEmail

	res := newTestOrchestrator(nil, WithMaxRetries(0)).Deliver(context.Background(), p, deliveryRecord())
	assert.False(t, res.Delivered)
	assert.Contains(t, res.Error, "not configured")
}

func TestAttemptTimeoutClamped(t *testing.T) {
	o := newTestOrchestrator(nil, WithAttemptTimeout(time.Second))
	assert.Equal(t, 10*time.Second, o.attemptTimeout)

	o = newTestOrchestrator(nil, WithAttemptTimeout(5*time.Minute))
	assert.Equal(t, 30*time.Second, o.attemptTimeout)
}
