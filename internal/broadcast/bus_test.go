package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	delivered int
	dropped   int
}

func (r *recordingObserver) ObserveBroadcast(key string, delivered, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered += delivered
	r.dropped += dropped
}

func envelope(t *testing.T, key string, n int) Envelope {
	t.Helper()
	env, err := NewEnvelope(EventMessage, key, map[string]int{"n": n})
	require.NoError(t, err)
	return env
}

func receive(t *testing.T, sub *Subscription) Envelope {
	t.Helper()
	select {
	case env := <-sub.C():
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

func TestPublishPreservesOrderPerKey(t *testing.T) {
	bus := NewLocalBus(16, nil)
	defer bus.Close()
	sub := bus.Subscribe("room:ops")
	other := bus.Subscribe("room:sales")

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(context.Background(), envelope(t, "room:ops", i)))
	}
	for i := 0; i < 10; i++ {
		var data map[string]int
		require.NoError(t, json.Unmarshal(receive(t, sub).Data, &data))
		assert.Equal(t, i, data["n"])
	}
	assert.Empty(t, other.C())
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	obs := &recordingObserver{}
	bus := NewLocalBus(2, obs)
	defer bus.Close()
	slow := bus.Subscribe("room:ops")
	fast := bus.Subscribe("room:ops")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = bus.Publish(context.Background(), envelope(t, "room:ops", i))
			<-fast.C()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Equal(t, int64(3), slow.Dropped())
	assert.Equal(t, int64(0), fast.Dropped())
	assert.Equal(t, 3, obs.dropped)
	assert.Equal(t, 7, obs.delivered)
}

func TestClosedSubscriptionIsSkipped(t *testing.T) {
	bus := NewLocalBus(4, nil)
	defer bus.Close()
	sub := bus.Subscribe("online_users")
	assert.Equal(t, 1, bus.Subscribers("online_users"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, bus.Subscribers("online_users"))
	require.NoError(t, bus.Publish(context.Background(), envelope(t, "online_users", 1)))
	assert.Empty(t, sub.C())

	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestCloseEndsSubscriptionsAndRejectsPublish(t *testing.T) {
	bus := NewLocalBus(4, nil)
	sub := bus.Subscribe("room:a")
	require.NoError(t, bus.Close())

	<-sub.Done()
	assert.ErrorIs(t, bus.Publish(context.Background(), envelope(t, "room:a", 1)), ErrClosed)

	late := bus.Subscribe("room:a")
	<-late.Done()
}

func TestConcurrentPublishersAndSubscribers(t *testing.T) {
	bus := NewLocalBus(256, nil)
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("room:x")
			defer sub.Close()
			time.Sleep(time.Millisecond)
		}()
		go func(n int) {
			defer wg.Done()
			_ = bus.Publish(context.Background(), envelope(t, "room:x", n))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, bus.Subscribers("room:x"))
}

func TestDecodeEnvelopeFallsBackToChannelKey(t *testing.T) {
	env, err := decodeEnvelope(ChannelPrefix+"room:ops", `{"type":"message","data":{"id":7}}`)
	require.NoError(t, err)
	assert.Equal(t, "room:ops", env.Key)
	assert.Equal(t, EventMessage, env.Type)
	assert.JSONEq(t, `{"id":7}`, string(env.Data))

	_, err = decodeEnvelope("x", "not json")
	assert.Error(t, err)
}
