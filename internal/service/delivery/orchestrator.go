// Package delivery pushes sold leads to buyer platforms over their
// configured channel: direct API post, HMAC-signed webhook, or email with
// a CSV attachment. Every attempt carries a timeout; failures retry with
// exponential backoff and the final outcome is always recorded.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// Result is the recorded outcome of one delivery.
type Result struct {
	LeadID     string    `json:"lead_id"`
	PlatformID string    `json:"platform_id"`
	Method     string    `json:"method"`
	Attempts   int       `json:"attempts"`
	Delivered  bool      `json:"delivered"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// ResultStore records delivery outcomes.
type ResultStore interface {
	SaveDeliveryResult(ctx context.Context, r *Result) error
}

// Defaults; both are configurable per deployment.
const (
	defaultAttemptTimeout = 15 * time.Second
	defaultMaxRetries     = 3
	minAttemptTimeout     = 10 * time.Second
	maxAttemptTimeout     = 30 * time.Second
)

// Orchestrator routes delivery to the right channel and owns retry policy
// and per-platform rate limits.
type Orchestrator struct {
	client *http.Client
	mailer Mailer
	store  ResultStore
	clock  lead.Clock
	logger *zap.Logger

	attemptTimeout time.Duration
	maxRetries     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAttemptTimeout sets the per-attempt timeout, clamped to 10-30s.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d < minAttemptTimeout {
			d = minAttemptTimeout
		}
		if d > maxAttemptTimeout {
			d = maxAttemptTimeout
		}
		o.attemptTimeout = d
	}
}

func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.client = c }
}

func WithClock(c lead.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates the orchestrator. mailer may be nil when no buyer
// uses email delivery; store may be nil in tests.
func NewOrchestrator(mailer Mailer, store ResultStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:         &http.Client{},
		mailer:         mailer,
		store:          store,
		clock:          lead.RealClock{},
		logger:         zap.NewNop(),
		attemptTimeout: defaultAttemptTimeout,
		maxRetries:     defaultMaxRetries,
		limiters:       make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Deliver pushes one sold lead to the platform, retrying transient
// failures. The result is always recorded, success or not; the caller
// decides whether to release the capacity reservation on failure.
func (o *Orchestrator) Deliver(ctx context.Context, platform *buyer.Platform, rec Record) *Result {
	result := &Result{
		LeadID:     rec.Lead.ID.String(),
		PlatformID: platform.ID,
		Method:     string(platform.Delivery.Method),
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			// 2^n seconds between attempts.
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(wait):
			}
			if ctx.Err() != nil {
				break
			}
		}

		if err := o.limiter(platform.ID).Wait(ctx); err != nil {
			lastErr = err
			break
		}

		result.Attempts = attempt + 1
		lastErr = o.attempt(ctx, platform, rec)
		if lastErr == nil {
			result.Delivered = true
			break
		}
		o.logger.Warn("delivery attempt failed",
			zap.String("platform_id", platform.ID),
			zap.String("lead_id", result.LeadID),
			zap.Int("attempt", result.Attempts),
			zap.Error(lastErr))
	}

	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	result.FinishedAt = o.clock.Now()

	if o.store != nil {
		if err := o.store.SaveDeliveryResult(ctx, result); err != nil {
			o.logger.Error("failed to record delivery result",
				zap.String("lead_id", result.LeadID), zap.Error(err))
		}
	}
	return result
}

// attempt performs a single delivery over the platform's channel with the
// per-attempt timeout applied.
func (o *Orchestrator) attempt(ctx context.Context, platform *buyer.Platform, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	switch platform.Delivery.Method {
	case buyer.DeliveryAPI:
		return o.deliverAPI(ctx, platform, rec)
	case buyer.DeliveryWebhook:
		return o.deliverWebhook(ctx, platform, rec)
	case buyer.DeliveryEmail:
		return o.deliverEmail(ctx, platform, rec)
	default:
		return domainerrors.NewDeliveryError(platform.ID,
			fmt.Sprintf("unknown delivery method %q", platform.Delivery.Method))
	}
}

func (o *Orchestrator) deliverAPI(ctx context.Context, platform *buyer.Platform, rec Record) error {
	payload, err := ExportJSON([]Record{rec})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, platform.Delivery.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if platform.Delivery.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+platform.Delivery.Secret)
	}
	return o.do(req, platform.ID)
}

func (o *Orchestrator) deliverWebhook(ctx context.Context, platform *buyer.Platform, rec Record) error {
	payload, err := ExportJSON([]Record{rec})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, platform.Delivery.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	signature, timestamp := signPayload(payload, platform.Delivery.Secret, o.clock.Now())
	req.Header.Set(headerSignature, signature)
	req.Header.Set(headerTimestamp, timestamp)
	return o.do(req, platform.ID)
}

func (o *Orchestrator) deliverEmail(ctx context.Context, platform *buyer.Platform, rec Record) error {
	if o.mailer == nil {
		return domainerrors.NewDeliveryError(platform.ID, "email delivery not configured")
	}
	csvData, err := ExportCSV([]Record{rec}, platform.Delivery.FieldMapping)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New solar lead %s (%s tier)", rec.Lead.ID, rec.Lead.Tier)
	body := fmt.Sprintf("One new qualified lead is attached.\n\nScore: %d\nBorough: %s\n", rec.Lead.Score, rec.Lead.Borough)
	if err := o.mailer.Send(ctx, platform.Delivery.To, subject, body, "leads.csv", csvData); err != nil {
		return domainerrors.NewDeliveryError(platform.ID, "email delivery failed").WithCause(err)
	}
	return nil
}

func (o *Orchestrator) do(req *http.Request, platformID string) error {
	resp, err := o.client.Do(req)
	if err != nil {
		return domainerrors.NewDeliveryError(platformID, "request failed").WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domainerrors.NewDeliveryError(platformID,
			fmt.Sprintf("buyer endpoint returned %d", resp.StatusCode))
	}
	return nil
}

// limiter returns the platform's rate limiter, creating a default one on
// first use. Buyers ingest at modest rates; 1 rps with small bursts keeps
// us under every contract we have.
func (o *Orchestrator) limiter(platformID string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.limiters[platformID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1), 5)
		o.limiters[platformID] = l
	}
	return l
}
