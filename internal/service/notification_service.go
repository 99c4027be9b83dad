package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/pkg/jobs"
)

type notificationRepository interface {
	Pending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, maxAttempts int) error
}

type watcherResolver interface {
	Watchers(ctx context.Context, opportunityID string) ([]string, error)
}

// Sender delivers one notification to its recipients. Email, webhooks, and
// push all sit behind this interface.
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// LogSender writes deliveries to the log. The default when no real channel is
// configured.
type LogSender struct {
	Logger *zap.Logger
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, n models.Notification) error {
	s.Logger.Info("notification dispatched",
		zap.String("kind", string(n.Kind)),
		zap.String("entity_kind", n.EntityKind),
		zap.String("entity_id", n.EntityID),
		zap.Strings("recipients", n.Recipients))
	return nil
}

// DispatcherConfig tunes the outbox dispatcher.
type DispatcherConfig struct {
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	BatchSize    int
}

// NotificationDispatcher drains the outbox: it polls for pending rows, fans
// them out over a worker queue, and marks each row sent or failed. Delivery
// lives entirely outside the workflow transactions that enqueue rows.
type NotificationDispatcher struct {
	repo     notificationRepository
	sender   Sender
	watchers watcherResolver
	queue    *jobs.Queue
	logger   *zap.Logger
	metrics  *MetricsService
	cfg      DispatcherConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	// Rows enqueued but not yet marked sent or failed. Guards against a slow
	// delivery being re-enqueued by the next poll tick.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// DispatcherOption customises construction.
type DispatcherOption func(*NotificationDispatcher)

// WithDispatcherMetrics wires outbox depth and delivery instrumentation.
func WithDispatcherMetrics(metrics *MetricsService) DispatcherOption {
	return func(d *NotificationDispatcher) { d.metrics = metrics }
}

// NewNotificationDispatcher constructs the dispatcher. watchers may be nil;
// opportunity-level rows with no explicit recipients then go out unaddressed.
func NewNotificationDispatcher(repo notificationRepository, sender Sender, watchers watcherResolver, logger *zap.Logger, cfg DispatcherConfig, opts ...DispatcherOption) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = &LogSender{Logger: logger}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	d := &NotificationDispatcher{
		repo:     repo,
		sender:   sender,
		watchers: watchers,
		logger:   logger,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
	}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker pool and the poll loop.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.queue.Start(ctx)
	d.wg.Add(1)
	go d.pollLoop(pollCtx)
}

// Stop halts polling and waits for in-flight deliveries.
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
	d.queue.Stop()
}

// DispatchPending pushes every pending outbox row onto the queue. Called by
// the poll loop and available for an explicit flush.
func (d *NotificationDispatcher) DispatchPending(ctx context.Context) (int, error) {
	pending, err := d.repo.Pending(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	d.metrics.SetOutboxDepth(len(pending))
	enqueued := 0
	for _, n := range pending {
		if !d.claim(n.ID) {
			continue
		}
		job := jobs.Job{ID: n.ID, Type: string(n.Kind), Payload: n}
		if err := d.queue.Enqueue(job); err != nil {
			d.release(n.ID)
			d.logger.Warn("enqueue dispatch job failed", zap.String("notification_id", n.ID), zap.Error(err))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// claim marks a row in-flight; returns false when it already is.
func (d *NotificationDispatcher) claim(id string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if _, ok := d.inflight[id]; ok {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *NotificationDispatcher) release(id string) {
	d.inflightMu.Lock()
	delete(d.inflight, id)
	d.inflightMu.Unlock()
}

func (d *NotificationDispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx); err != nil {
				d.logger.Error("poll outbox failed", zap.Error(err))
			}
		}
	}
}

func (d *NotificationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		d.logger.Error("unexpected job payload", zap.String("job_id", job.ID))
		return nil
	}
	defer d.release(n.ID)

	if len(n.Recipients) == 0 && n.EntityKind == "opportunity" && d.watchers != nil {
		watchers, err := d.watchers.Watchers(ctx, n.EntityID)
		if err != nil {
			d.logger.Warn("resolve watchers failed", zap.String("opportunity_id", n.EntityID), zap.Error(err))
		} else {
			n.Recipients = watchers
		}
	}

	if err := d.sender.Send(ctx, n); err != nil {
		d.metrics.ObserveDispatch(false)
		if markErr := d.repo.MarkFailed(ctx, n.ID, d.cfg.MaxRetries); markErr != nil {
			d.logger.Error("mark notification failed errored", zap.String("notification_id", n.ID), zap.Error(markErr))
		}
		return err
	}
	d.metrics.ObserveDispatch(true)
	if err := d.repo.MarkSent(ctx, n.ID); err != nil {
		d.logger.Error("mark notification sent errored", zap.String("notification_id", n.ID), zap.Error(err))
	}
	return nil
}
