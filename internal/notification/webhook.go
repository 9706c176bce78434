package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/backoffpkg"
	"github.com/go-petr/pet-ledger/pkg/signpkg"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryBase      = 500 * time.Millisecond
)

// WebhookConfig holds the delivery policy of the WebhookDispatcher.
type WebhookConfig struct {
	URL         string
	Secret      string
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryBase   time.Duration
	Timeout     time.Duration
}

// WebhookDispatcher posts notifications as JSON to a webhook from a pool of workers.
//
// Dispatch only enqueues. A full queue drops the notification.
type WebhookDispatcher struct {
	config   WebhookConfig
	client   *http.Client
	queue    chan domain.Notification
	observer Observer
	logger   zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewWebhookDispatcher returns a WebhookDispatcher. Call Start to run the workers.
func NewWebhookDispatcher(config WebhookConfig, observer Observer, logger zerolog.Logger) *WebhookDispatcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}

	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}

	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}

	if config.RetryBase <= 0 {
		config.RetryBase = defaultRetryBase
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultWebhookTimeout
	}

	return &WebhookDispatcher{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		queue:    make(chan domain.Notification, config.QueueSize),
		observer: observer,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Dispatch enqueues n without blocking.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, n domain.Notification) {
	select {
	case <-d.stop:
		d.dropped(ctx, n, "dispatcher stopped")
		return
	default:
	}

	select {
	case d.queue <- n:
	default:
		d.dropped(ctx, n, "queue full")
	}
}

// Start runs the workers until ctx is done or Close is called.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)

		go func(worker int) {
			defer d.wg.Done()
			d.work(ctx, worker)
		}(i)
	}
}

// Close stops the workers after the queued notifications are delivered and waits for them.
func (d *WebhookDispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *WebhookDispatcher) work(ctx context.Context, worker int) {
	l := d.logger.With().Int("worker", worker).Logger()
	ctx = l.WithContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		case <-d.stop:
			for {
				select {
				case n := <-d.queue:
					d.deliver(ctx, n)
				default:
					return
				}
			}
		}
	}
}

func (d *WebhookDispatcher) deliver(ctx context.Context, n domain.Notification) {
	l := zerolog.Ctx(ctx)

	body, err := json.Marshal(n)
	if err != nil {
		l.Error().Err(err).Str("reference", n.Reference).Msg("cannot marshal notification")
		d.observe(ResultFailed)

		return
	}

	for attempt := 0; attempt < d.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffpkg.ExponentialWithJitter(d.config.RetryBase, attempt-1)
			if err := backoffpkg.SleepWithContext(ctx, delay); err != nil {
				break
			}
		}

		err = d.post(ctx, body)
		if err == nil {
			d.observe(ResultSent)
			return
		}

		l.Warn().Err(err).
			Str("reference", n.Reference).
			Int("attempt", attempt+1).
			Msg("notification webhook failed")
	}

	l.Error().Err(err).Str("reference", n.Reference).Str("type", n.Type).Msg("notification not delivered")
	d.observe(ResultFailed)
}

func (d *WebhookDispatcher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pet-ledger-notifier/1.0")

	if d.config.Secret != "" {
		req.Header.Set(signpkg.Header, signpkg.Sign(d.config.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (d *WebhookDispatcher) dropped(ctx context.Context, n domain.Notification, reason string) {
	zerolog.Ctx(ctx).Warn().
		Str("reference", n.Reference).
		Str("type", n.Type).
		Str("reason", reason).
		Msg("notification dropped")

	d.observe(ResultDropped)
}

func (d *WebhookDispatcher) observe(result string) {
	if d.observer != nil {
		d.observer.Notification(result)
	}
}
