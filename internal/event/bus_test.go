package event

import (
	"sync"
	"testing"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()

	var got1, got2 []int64
	b.Subscribe(func(ev CartChanged) { got1 = append(got1, ev.UserID) })
	b.Subscribe(func(ev CartChanged) { got2 = append(got2, ev.UserID) })

	b.Publish(CartChanged{UserID: 7, Source: SourceLocal})

	if len(got1) != 1 || got1[0] != 7 {
		t.Errorf("subscriber 1 got %v, want [7]", got1)
	}
	if len(got2) != 1 || got2[0] != 7 {
		t.Errorf("subscriber 2 got %v, want [7]", got2)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()

	var count int
	unsubscribe := b.Subscribe(func(CartChanged) { count++ })

	b.Publish(CartChanged{UserID: 1})
	unsubscribe()
	b.Publish(CartChanged{UserID: 1})

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}

	// 重复取消订阅不应影响其他订阅者
	b.Subscribe(func(CartChanged) {})
	unsubscribe()
	if b.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", b.SubscriberCount())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	var total int
	b.Subscribe(func(CartChanged) {
		mu.Lock()
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(CartChanged{UserID: 1})
		}()
	}
	wg.Wait()

	if total != 50 {
		t.Errorf("total = %d, want 50", total)
	}
}
