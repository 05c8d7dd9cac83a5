package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/opsdeck/automation-engine/internal/config"
)

// recordingSender captures notifications handed to it by the pool.
type recordingSender struct {
	mu       sync.Mutex
	received []Notification
	outcome  Delivery
}

func (s *recordingSender) Send(ctx context.Context, n Notification) Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return s.outcome
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func workerConfig() config.NotifierConfig {
	return config.NotifierConfig{
		PoolSize:   2,
		QueueSize:  10,
		ExpiryTime: time.Minute,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorker_DeliversToChannelSender(t *testing.T) {
	sms := &recordingSender{outcome: DeliverySent}
	worker, err := NewWorker(workerConfig(), map[string]Sender{ChannelSMS: sms}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer worker.Stop()

	task := TaskData{
		Ctx: context.Background(),
		Notification: Notification{
			WorkspaceID: "ws-1",
			Channel:     ChannelSMS,
			Recipient:   "+15551234567",
			Body:        "hello",
		},
	}
	require.NoError(t, worker.Submit(task))

	waitFor(t, 2*time.Second, func() bool { return sms.count() == 1 })
	assert.Equal(t, "+15551234567", sms.received[0].Recipient)
}

func TestWorker_UnknownChannelIsSkipped(t *testing.T) {
	sms := &recordingSender{outcome: DeliverySent}
	worker, err := NewWorker(workerConfig(), map[string]Sender{ChannelSMS: sms}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer worker.Stop()

	task := TaskData{
		Ctx:          context.Background(),
		Notification: Notification{WorkspaceID: "ws-1", Channel: "carrier-pigeon"},
	}
	// Submission succeeds; the skip happens at delivery time.
	require.NoError(t, worker.Submit(task))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sms.count())
}

func TestWorker_FailedDeliveryDoesNotPropagate(t *testing.T) {
	sms := &recordingSender{outcome: DeliveryFailed}
	worker, err := NewWorker(workerConfig(), map[string]Sender{ChannelSMS: sms}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer worker.Stop()

	task := TaskData{
		Ctx:          context.Background(),
		Notification: Notification{WorkspaceID: "ws-1", Channel: ChannelSMS, Recipient: "+15551234567"},
	}
	require.NoError(t, worker.Submit(task))

	waitFor(t, 2*time.Second, func() bool { return sms.count() == 1 })
}

func TestLogSender_AlwaysSent(t *testing.T) {
	sender := NewLogSender(ChannelEmail)

	outcome := sender.Send(context.Background(), Notification{
		WorkspaceID: "ws-1",
		Channel:     ChannelEmail,
		Recipient:   "sarah@example.com",
		Subject:     "Booking confirmed",
		Body:        "See you soon!",
	})

	assert.Equal(t, DeliverySent, outcome)
}
