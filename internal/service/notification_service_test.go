package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/pkg/jobs"
)

type stubNotificationRepo struct {
	mu      sync.Mutex
	pending []models.Notification
	sent    []string
	failed  []string
}

func (m *stubNotificationRepo) Pending(_ context.Context, _ int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, nil
}

func (m *stubNotificationRepo) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	return nil
}

func (m *stubNotificationRepo) MarkFailed(_ context.Context, id string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, id)
	return nil
}

func (m *stubNotificationRepo) sentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type stubSender struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (m *stubSender) Send(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

type stubWatchers struct {
	watchers map[string][]string
}

func (m *stubWatchers) Watchers(_ context.Context, opportunityID string) ([]string, error) {
	return m.watchers[opportunityID], nil
}

func TestDispatcherHandleResolvesWatchersAndMarksSent(t *testing.T) {
	repo := &stubNotificationRepo{}
	sender := &stubSender{}
	watchers := &stubWatchers{watchers: map[string][]string{"opp-1": {"vendor-1", "vendor-2"}}}
	d := NewNotificationDispatcher(repo, sender, watchers, nil, DispatcherConfig{})

	n := models.Notification{ID: "n-1", Kind: models.NotificationOpportunityPublished, EntityKind: "opportunity", EntityID: "opp-1"}
	err := d.handle(context.Background(), jobs.Job{ID: n.ID, Payload: n})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"vendor-1", "vendor-2"}, []string(sender.sent[0].Recipients))
	assert.Equal(t, []string{"n-1"}, repo.sent)
}

func TestDispatcherHandleKeepsExplicitRecipients(t *testing.T) {
	repo := &stubNotificationRepo{}
	sender := &stubSender{}
	watchers := &stubWatchers{watchers: map[string][]string{"opp-1": {"vendor-9"}}}
	d := NewNotificationDispatcher(repo, sender, watchers, nil, DispatcherConfig{})

	n := models.Notification{ID: "n-2", Kind: models.NotificationProposalAwarded, EntityKind: "proposal", EntityID: "prop-1", Recipients: []string{"vendor-1"}}
	require.NoError(t, d.handle(context.Background(), jobs.Job{ID: n.ID, Payload: n}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"vendor-1"}, []string(sender.sent[0].Recipients))
}

func TestDispatcherHandleMarksFailedOnSendError(t *testing.T) {
	repo := &stubNotificationRepo{}
	sender := &stubSender{err: errors.New("smtp down")}
	d := NewNotificationDispatcher(repo, sender, nil, nil, DispatcherConfig{})

	n := models.Notification{ID: "n-3", Kind: models.NotificationReadyForEvaluation, EntityKind: "opportunity", EntityID: "opp-1"}
	err := d.handle(context.Background(), jobs.Job{ID: n.ID, Payload: n})
	require.Error(t, err)
	assert.Equal(t, []string{"n-3"}, repo.failed)
	assert.Empty(t, repo.sent)
}

func TestDispatchPendingDrainsOutbox(t *testing.T) {
	repo := &stubNotificationRepo{pending: []models.Notification{
		{ID: "n-1", Kind: models.NotificationOpportunityPublished, EntityKind: "opportunity", EntityID: "opp-1"},
		{ID: "n-2", Kind: models.NotificationProposalSubmitted, EntityKind: "proposal", EntityID: "prop-1", Recipients: []string{"gov-1"}},
	}}
	sender := &stubSender{}
	metrics := NewMetricsService()
	d := NewNotificationDispatcher(repo, sender, nil, nil, DispatcherConfig{Workers: 2, PollInterval: time.Hour},
		WithDispatcherMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	enqueued, err := d.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)

	require.Eventually(t, func() bool {
		return len(repo.sentIDs()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.outboxDepth))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("sent")))
}

// blockingSender holds every delivery open until released.
type blockingSender struct {
	mu      sync.Mutex
	begun   int
	release chan struct{}
}

func (m *blockingSender) Send(_ context.Context, _ models.Notification) error {
	m.mu.Lock()
	m.begun++
	m.mu.Unlock()
	<-m.release
	return nil
}

func (m *blockingSender) inDelivery() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begun > 0
}

func TestDispatchPendingSkipsRowsStillInFlight(t *testing.T) {
	repo := &stubNotificationRepo{pending: []models.Notification{
		{ID: "n-1", Kind: models.NotificationOpportunityPublished, EntityKind: "opportunity", EntityID: "opp-1"},
	}}
	sender := &blockingSender{release: make(chan struct{})}
	d := NewNotificationDispatcher(repo, sender, nil, nil, DispatcherConfig{Workers: 1, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	first, err := d.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	require.Eventually(t, sender.inDelivery, 2*time.Second, 5*time.Millisecond)

	// The row is still being delivered; a second poll must not enqueue it again.
	second, err := d.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second)

	close(sender.release)
	require.Eventually(t, func() bool {
		return len(repo.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	d.Stop()
}
