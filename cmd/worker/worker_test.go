package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/queue"
)

// MockDeliveryRepo stores events in memory and fails the first failFirst inserts
type MockDeliveryRepo struct {
	mu        sync.Mutex
	events    []*model.DeliveryEvent
	attempts  int
	failFirst int
}

func (m *MockDeliveryRepo) Create(ctx context.Context, e *model.DeliveryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failFirst {
		return errors.New("database unavailable")
	}
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *MockDeliveryRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.DeliveryEvent, error) {
	return nil, nil
}

func (m *MockDeliveryRepo) GetCampaignStats(ctx context.Context, campaignID string) (map[string]int, error) {
	return nil, nil
}

func (m *MockDeliveryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestWorker(t *testing.T) {
	repo := &MockDeliveryRepo{failFirst: 1}
	q := queue.NewInMemoryQueue(logger.Nop())
	q.Backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, q, repo, logger.Nop()) }()

	payload, err := json.Marshal(model.DeliveryEvent{
		CampaignID: "c-1",
		Channel:    model.ChannelEmail,
		Recipient:  "jane@example.com",
		Status:     model.DeliverySent,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.Publish(queue.DeliveryTopic, payload) == nil
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 2, repo.attempts, "first insert failure is retried")
	assert.Equal(t, "c-1", repo.events[0].CampaignID)
	assert.Equal(t, model.DeliverySent, repo.events[0].Status)
}

func TestWorker_DropsMalformedEvents(t *testing.T) {
	repo := &MockDeliveryRepo{}
	q := queue.NewInMemoryQueue(logger.Nop())
	require.NoError(t, queue.StartDeliveryRecorder(q, repo, logger.Nop()))

	require.NoError(t, q.Publish(queue.DeliveryTopic, []byte("{not json")))
	require.NoError(t, q.Close())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 0, repo.attempts)
}
