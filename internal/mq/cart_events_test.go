package mq

import (
	"context"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Lucassml-boop/commerce-e/internal/event"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []CartChangedMessage
	routes   []string
}

func (f *fakePublisher) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, options *PublishOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data.(CartChangedMessage))
	f.routes = append(f.routes, exchange+"/"+routingKey)
	return nil
}

func (f *fakePublisher) published() []CartChangedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CartChangedMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

func TestCartNotifierForwardsLocalEvents(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewCartNotifier(pub, "instance-a", nil)
	bus := event.NewBus()

	notifier.Start(bus)
	bus.Publish(event.CartChanged{UserID: 42, Source: event.SourceLocal})
	notifier.Close()

	msgs := pub.published()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(msgs))
	}
	if msgs[0].UserID != 42 {
		t.Errorf("expected user_id 42, got %d", msgs[0].UserID)
	}
	if msgs[0].Instance != "instance-a" {
		t.Errorf("expected instance instance-a, got %s", msgs[0].Instance)
	}
	if pub.routes[0] != CartExchange+"/"+CartRoutingKey {
		t.Errorf("unexpected route %s", pub.routes[0])
	}
}

func TestCartNotifierIgnoresRemoteEvents(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewCartNotifier(pub, "instance-a", nil)
	bus := event.NewBus()

	notifier.Start(bus)
	bus.Publish(event.CartChanged{UserID: 42, Source: event.SourceRemote})
	notifier.Close()

	if msgs := pub.published(); len(msgs) != 0 {
		t.Fatalf("expected no published messages, got %d", len(msgs))
	}
}

func TestCartNotifierCloseStopsForwarding(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewCartNotifier(pub, "instance-a", nil)
	bus := event.NewBus()

	notifier.Start(bus)
	notifier.Close()
	bus.Publish(event.CartChanged{UserID: 42, Source: event.SourceLocal})

	if msgs := pub.published(); len(msgs) != 0 {
		t.Fatalf("expected no published messages after close, got %d", len(msgs))
	}
}

func TestCartListenerPublishesRemoteEvents(t *testing.T) {
	bus := event.NewBus()
	listener := NewCartListener(nil, nil, bus, "instance-a", nil)

	var got []event.CartChanged
	unsubscribe := bus.Subscribe(func(ev event.CartChanged) {
		got = append(got, ev)
	})
	defer unsubscribe()

	msg := CartChangedMessage{UserID: 42, Instance: "instance-b"}
	if err := listener.handleMessage(context.Background(), msg, amqp.Delivery{}); err != nil {
		t.Fatalf("handleMessage returned error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 bus event, got %d", len(got))
	}
	if got[0].UserID != 42 || got[0].Source != event.SourceRemote {
		t.Errorf("unexpected event %+v", got[0])
	}
}

func TestCartListenerSkipsOwnInstance(t *testing.T) {
	bus := event.NewBus()
	listener := NewCartListener(nil, nil, bus, "instance-a", nil)

	delivered := 0
	unsubscribe := bus.Subscribe(func(event.CartChanged) { delivered++ })
	defer unsubscribe()

	msg := CartChangedMessage{UserID: 42, Instance: "instance-a"}
	if err := listener.handleMessage(context.Background(), msg, amqp.Delivery{}); err != nil {
		t.Fatalf("handleMessage returned error: %v", err)
	}

	if delivered != 0 {
		t.Fatalf("expected no bus events for own messages, got %d", delivered)
	}
}

func TestCartListenerDropsInvalidUser(t *testing.T) {
	bus := event.NewBus()
	listener := NewCartListener(nil, nil, bus, "instance-a", nil)

	delivered := 0
	unsubscribe := bus.Subscribe(func(event.CartChanged) { delivered++ })
	defer unsubscribe()

	msg := CartChangedMessage{UserID: 0, Instance: "instance-b"}
	if err := listener.handleMessage(context.Background(), msg, amqp.Delivery{}); err != nil {
		t.Fatalf("handleMessage returned error: %v", err)
	}

	if delivered != 0 {
		t.Fatalf("expected invalid message to be dropped, got %d events", delivered)
	}
}

func TestCartTopologyBinding(t *testing.T) {
	exchange, queue := CartTopology("")

	if exchange.Name != CartExchange || exchange.Type != "topic" || !exchange.Durable {
		t.Errorf("unexpected exchange config %+v", exchange)
	}
	if !queue.Exclusive || !queue.AutoDelete {
		t.Errorf("instance queue must be exclusive and auto-delete, got %+v", queue)
	}
	if len(queue.Bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(queue.Bindings))
	}
	if b := queue.Bindings[0]; b.Exchange != CartExchange || b.RoutingKey != CartRoutingKey {
		t.Errorf("unexpected binding %+v", b)
	}
}
