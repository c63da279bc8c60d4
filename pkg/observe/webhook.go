package observe

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/telemetry/metrics"
)

// Delivery results recorded in metrics.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliveryDropped   = "dropped"
)

// Sink receives new-violation events.
type Sink interface {
	// Enqueue hands e to the sink without blocking. It returns false when the
	// event was dropped.
	Enqueue(e Event) bool

	// Close stops accepting events and waits for pending deliveries until ctx
	// is done.
	Close(ctx context.Context) error
}

// WebhookSink posts events to a URL from a background goroutine. Failed
// deliveries are retried with exponential backoff; events that exhaust their
// retries are dropped and logged.
type WebhookSink struct {
	cfg     config.WebhookConfig
	client  *resty.Client
	metrics *metrics.Collector
	logger  *slog.Logger

	queue  chan Event
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewWebhookSink creates a sink posting to cfg.URL and starts its worker.
func NewWebhookSink(cfg config.WebhookConfig, collector *metrics.Collector, logger *slog.Logger) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultWebhookTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = config.DefaultWebhookInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = config.DefaultWebhookMaxInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultWebhookQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "intercept").
		SetHeaders(cfg.Headers)
	if cfg.Insecure {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &WebhookSink{
		cfg:     cfg,
		client:  client,
		metrics: collector,
		logger:  logger.With("component", "observe.webhook"),
		queue:   make(chan Event, cfg.QueueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.run()
	return s
}

// Enqueue implements Sink.
func (s *WebhookSink) Enqueue(e Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(e, ErrSinkClosed)
		return false
	}
	select {
	case s.queue <- e:
		return true
	default:
		s.drop(e, ErrQueueFull)
		return false
	}
}

// Close implements Sink.
func (s *WebhookSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return ctx.Err()
	}
}

func (s *WebhookSink) run() {
	defer close(s.done)
	defer s.cancel()

	for e := range s.queue {
		if err := s.deliver(s.ctx, e); err != nil {
			s.metrics.RecordDelivery(DeliveryFailed)
			s.logger.Error("webhook delivery failed, event dropped",
				"rule_id", e.RuleID,
				"idempotency_key", e.IdempotencyKey,
				"error", err,
			)
			continue
		}
		s.metrics.RecordDelivery(DeliveryDelivered)
		s.logger.Debug("webhook delivered",
			"rule_id", e.RuleID,
			"violations", e.ViolationCount,
		)
	}
}

func (s *WebhookSink) deliver(ctx context.Context, e Event) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval

	_, err := backoff.Retry(ctx, func() (int, error) {
		return s.post(ctx, e)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.cfg.MaxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("webhook delivery retrying",
				"rule_id", e.RuleID,
				"error", err,
				"retry_in", next,
			)
		}),
	)
	return err
}

// post sends e once. Client errors other than 429 are not retried.
func (s *WebhookSink) post(ctx context.Context, e Event) (int, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", e.IdempotencyKey).
		SetBody(e).
		Post(s.cfg.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, backoff.Permanent(&DeliveryError{URL: s.cfg.URL, Err: err})
		}
		return 0, &DeliveryError{URL: s.cfg.URL, Err: err}
	}

	status := resp.StatusCode()
	switch {
	case resp.IsSuccess():
		return status, nil
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return status, &DeliveryError{URL: s.cfg.URL, Status: status}
	default:
		return status, backoff.Permanent(&DeliveryError{URL: s.cfg.URL, Status: status})
	}
}

func (s *WebhookSink) drop(e Event, reason error) {
	s.metrics.RecordDelivery(DeliveryDropped)
	s.logger.Warn("webhook event dropped",
		"rule_id", e.RuleID,
		"idempotency_key", e.IdempotencyKey,
		"reason", reason,
	)
}
