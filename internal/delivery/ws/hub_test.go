package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

type recordingRelay struct {
	mu       sync.Mutex
	channels []string
}

func (r *recordingRelay) Publish(_ context.Context, channel string, _ []byte, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channel)
	return nil
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.clients == nil {
		t.Error("Clients map not initialized")
	}
	if hub.channels == nil {
		t.Error("Channels map not initialized")
	}
	if hub.evict == nil {
		t.Error("Evict channel not initialized")
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	client := newMockClient(hub, "u1")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	if !hub.Unregister(client) {
		t.Error("Expected first unregister to succeed")
	}
	if hub.Unregister(client) {
		t.Error("Expected double unregister to be a no-op")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}

	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}
}

func TestHub_UnregisterDropsSubscriptions(t *testing.T) {
	hub := NewHub()
	client := newMockClient(hub, "u1")
	hub.Register(client)

	hub.Join(client, "conversation:a")
	hub.Join(client, "conversation:b")
	if hub.ChannelCount() != 2 {
		t.Fatalf("Expected 2 channels, got %d", hub.ChannelCount())
	}

	hub.Unregister(client)
	if hub.ChannelCount() != 0 {
		t.Errorf("Expected channels to be cleaned up, got %d", hub.ChannelCount())
	}
	if hub.Join(client, "conversation:c") {
		t.Error("Expected join after unregister to fail")
	}
}

func TestHub_PublishScopesToChannel(t *testing.T) {
	hub := NewHub()
	a := newMockClient(hub, "u1")
	b := newMockClient(hub, "u2")
	outsider := newMockClient(hub, "u3")
	for _, c := range []*Client{a, b, outsider} {
		hub.Register(c)
	}
	hub.Join(a, "conversation:x")
	hub.Join(b, "conversation:x")

	if err := hub.Publish("conversation:x", domain.NewEvent("test", nil), ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(drain(t, a)) != 1 || len(drain(t, b)) != 1 {
		t.Error("Expected both subscribers to receive the event")
	}
	if len(drain(t, outsider)) != 0 {
		t.Error("Expected outsider to receive nothing")
	}
}

func TestHub_PublishExcludesUser(t *testing.T) {
	hub := NewHub()
	a := newMockClient(hub, "u1")
	b := newMockClient(hub, "u2")
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "conversation:x")
	hub.Join(b, "conversation:x")

	hub.Publish("conversation:x", domain.NewEvent("test", nil), "u1")

	if len(drain(t, a)) != 0 {
		t.Error("Expected excluded user to receive nothing")
	}
	if len(drain(t, b)) != 1 {
		t.Error("Expected other subscriber to receive the event")
	}
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	a := newMockClient(hub, "u1")
	hub.Register(a)
	hub.Join(a, "conversation:x")
	hub.Leave(a, "conversation:x")

	if hub.IsSubscribed(a, "conversation:x") {
		t.Error("Expected client to be unsubscribed")
	}
	hub.Publish("conversation:x", domain.NewEvent("test", nil), "")
	if len(drain(t, a)) != 0 {
		t.Error("Expected no delivery after leave")
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := NewHub()
	clients := []*Client{newMockClient(hub, "u1"), newMockClient(hub, "u2"), newMockClient(hub, "u3")}
	for _, c := range clients {
		hub.Register(c)
	}

	hub.BroadcastAll(domain.NewEvent(domain.EventUserStatus, nil))

	for _, c := range clients {
		if got := len(drain(t, c)); got != 1 {
			t.Errorf("Expected 1 frame, got %d", got)
		}
	}
}

func TestHub_SlowClientIsEvicted(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := &Client{
		ID:      "slow",
		Session: &Session{ConnID: "slow", UserID: "u1"},
		hub:     hub,
		send:    make(chan []byte, 1), // Small buffer
		closed:  make(chan struct{}),
	}
	hub.Register(slow)

	hub.BroadcastAll(domain.NewEvent("one", nil))
	hub.BroadcastAll(domain.NewEvent("two", nil)) // overflows

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("Expected slow client to be evicted")
	}
}

func TestHub_SendToGoneClient(t *testing.T) {
	hub := NewHub()
	c := newMockClient(hub, "u1")
	if hub.Send(c, domain.NewEvent("x", nil)) {
		t.Error("Expected send to unregistered client to fail")
	}
}

func TestHub_RelayForwarding(t *testing.T) {
	hub := NewHub()
	relay := &recordingRelay{}
	hub.SetRelay(relay)

	a := newMockClient(hub, "u1")
	hub.Register(a)
	hub.Join(a, "conversation:x")

	hub.Publish("conversation:x", domain.NewEvent("local", nil), "")
	if relay.count() != 1 {
		t.Errorf("Expected local publish to be relayed, got %d", relay.count())
	}

	if n := hub.DeliverRemote("conversation:x", []byte(`{"type":"remote"}`), ""); n != 1 {
		t.Errorf("Expected remote frame delivered once, got %d", n)
	}
	if relay.count() != 1 {
		t.Error("Expected remote frames not to be relayed again")
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newMockClient(hub, "u")
			hub.Register(c)
			hub.Join(c, "conversation:shared")
			hub.Publish("conversation:shared", domain.NewEvent("x", nil), "")
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 || hub.ChannelCount() != 0 {
		t.Errorf("Expected empty hub, got %d clients %d channels", hub.ClientCount(), hub.ChannelCount())
	}
}
