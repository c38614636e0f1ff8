package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllListeners(t *testing.T) {
	b := NewBus(10)

	var mu sync.Mutex
	var first, second []Event
	b.Subscribe(func(e Event) {
		mu.Lock()
		first = append(first, e)
		mu.Unlock()
	})
	b.Subscribe(func(e Event) {
		mu.Lock()
		second = append(second, e)
		mu.Unlock()
	})

	b.Publish(New(TypeChallengeStarted, 1, nil))
	b.Publish(New(TypeChallengeComplete, 1, nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, TypeChallengeStarted, first[0].Type)
	assert.Equal(t, TypeChallengeComplete, first[1].Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(10)

	var mu sync.Mutex
	var got int
	id := b.Subscribe(func(Event) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	b.Publish(New(TypeChallengeStarted, 1, nil))
	require.True(t, b.Unsubscribe(id))
	b.Publish(New(TypeChallengeComplete, 1, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, got)

	// Unknown IDs are reported, not fatal.
	assert.False(t, b.Unsubscribe(id))
}

func TestRetentionEvictsOldestFirst(t *testing.T) {
	const capacity = 8
	b := NewBus(capacity)

	for i := 1; i <= capacity+5; i++ {
		b.Publish(New(TypeChallengeMetrics, i, nil))
	}

	assert.Equal(t, capacity, b.Len())

	recent := b.Recent(capacity)
	require.Len(t, recent, capacity)

	// Newest first: the last published event leads, and the
	// five oldest have been evicted.
	assert.Equal(t, capacity+5, recent[0].Level)
	assert.Equal(t, 6, recent[capacity-1].Level)
}

func TestRecentBoundedByAvailable(t *testing.T) {
	b := NewBus(10)
	b.Publish(New(TypeSequenceStarted, 0, nil))
	b.Publish(New(TypeChallengeStarted, 1, nil))

	assert.Len(t, b.Recent(100), 2)
	assert.Len(t, b.Recent(1), 1)
	// Non-positive n means everything retained.
	assert.Len(t, b.Recent(0), 2)
}

func TestPanickingListenerDoesNotPoisonOthers(t *testing.T) {
	b := NewBus(10)

	var mu sync.Mutex
	var delivered int
	b.Subscribe(func(Event) { panic("bad listener") })
	b.Subscribe(func(Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	require.NotPanics(t, func() {
		b.Publish(New(TypeChallengeError, 2, nil))
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, delivered)
}

func TestConcurrentPublishersAndSubscribers(t *testing.T) {
	b := NewBus(50)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				b.Publish(New(
					TypeChallengeMetrics, g+1,
					map[string]any{"i": i},
				))
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := b.Subscribe(func(Event) {})
			b.Unsubscribe(id)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, b.Len())
}

func TestEventCarriesPayload(t *testing.T) {
	e := New(TypeChallengeFailed, 3, map[string]any{
		"error": "step 2 failed",
	})
	assert.Equal(t, TypeChallengeFailed, e.Type)
	assert.Equal(t, 3, e.Level)
	assert.Equal(t, "step 2 failed", e.Payload["error"])
	assert.False(t, e.Timestamp.IsZero())
}

func BenchmarkPublish(b *testing.B) {
	bus := NewBus(DefaultRetention)
	for i := 0; i < 4; i++ {
		bus.Subscribe(func(Event) {})
	}
	ev := New(TypeChallengeMetrics, 1, map[string]any{
		"execution_time": 0.5,
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(ev)
	}
}
