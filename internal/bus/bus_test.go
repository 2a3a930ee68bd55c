package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opengov-labs/kestrel/internal/domain"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestChannelBus(t *testing.T) {
	ctx := context.Background()

	t.Run("PublishSubscribe", func(t *testing.T) {
		b := NewChannelBus(16)
		defer b.Close()

		var got atomic.Value
		_, err := b.Subscribe(ctx, domain.TopicFeedbackReceived, func(_ context.Context, msg *domain.Message) error {
			got.Store(string(msg.Payload))
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe() error: %v", err)
		}

		if err := b.Publish(ctx, domain.TopicFeedbackReceived, []byte(`{"feedbackId":"fb-1"}`)); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}

		waitFor(t, func() bool { return got.Load() != nil })
		if got.Load().(string) != `{"feedbackId":"fb-1"}` {
			t.Errorf("payload = %s", got.Load())
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		b := NewChannelBus(16)
		defer b.Close()

		var count int64
		b.Subscribe(ctx, domain.TopicCaseCreated, func(_ context.Context, _ *domain.Message) error {
			atomic.AddInt64(&count, 1)
			return nil
		})

		b.Publish(ctx, domain.TopicCaseResolved, []byte("{}"))
		b.Publish(ctx, domain.TopicCaseCreated, []byte("{}"))

		waitFor(t, func() bool { return atomic.LoadInt64(&count) == 1 })
		time.Sleep(20 * time.Millisecond)
		if n := atomic.LoadInt64(&count); n != 1 {
			t.Errorf("handler ran %d times, want 1", n)
		}
	})

	t.Run("FanOut", func(t *testing.T) {
		b := NewChannelBus(16)
		defer b.Close()

		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			once := sync.Once{}
			b.Subscribe(ctx, domain.TopicFeedbackAnalyzed, func(_ context.Context, _ *domain.Message) error {
				once.Do(wg.Done)
				return nil
			})
		}

		b.Publish(ctx, domain.TopicFeedbackAnalyzed, []byte("{}"))

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("not all subscribers received the message")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		b := NewChannelBus(16)
		defer b.Close()

		var count int64
		sub, _ := b.Subscribe(ctx, domain.TopicFeedbackReceived, func(_ context.Context, _ *domain.Message) error {
			atomic.AddInt64(&count, 1)
			return nil
		})
		if sub.Topic() != domain.TopicFeedbackReceived {
			t.Errorf("Topic() = %s", sub.Topic())
		}

		sub.Unsubscribe()
		time.Sleep(10 * time.Millisecond)
		b.Publish(ctx, domain.TopicFeedbackReceived, []byte("{}"))
		time.Sleep(20 * time.Millisecond)

		if n := atomic.LoadInt64(&count); n != 0 {
			t.Errorf("handler ran %d times after unsubscribe", n)
		}
	})

	t.Run("RequestReply", func(t *testing.T) {
		b := NewChannelBus(16)
		defer b.Close()

		b.Subscribe(ctx, "kestrel.echo", func(ctx context.Context, msg *domain.Message) error {
			// Reply topic rides on the request topic namespace.
			return nil
		})

		reqCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		if _, err := b.Request(reqCtx, "kestrel.echo", []byte("ping")); err == nil {
			t.Error("expected timeout when nothing replies")
		}
	})

	t.Run("ClosedBusRejectsWork", func(t *testing.T) {
		b := NewChannelBus(16)
		b.Close()

		if err := b.Ping(ctx); err == nil {
			t.Error("Ping() after Close should fail")
		}
		if err := b.Publish(ctx, domain.TopicFeedbackReceived, []byte("{}")); err == nil {
			t.Error("Publish() after Close should fail")
		}
		if _, err := b.Subscribe(ctx, domain.TopicFeedbackReceived, func(context.Context, *domain.Message) error { return nil }); err == nil {
			t.Error("Subscribe() after Close should fail")
		}
	})
}
