package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reelgate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingBus struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (b *recordingBus) Publish(_ context.Context, event domain.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return b.err
}

func videoEvent(id string, changeType domain.ChangeType) domain.ChangeEvent {
	return domain.ChangeEvent{Collection: domain.CollectionVideos, DocID: id, Type: changeType}
}

func receive(t *testing.T, s *Subscriber) domain.ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-s.Events():
		require.True(t, ok, "subscriber channel closed")
		return event
	default:
		t.Fatal("no event delivered")
		return domain.ChangeEvent{}
	}
}

func assertEmpty(t *testing.T, s *Subscriber) {
	t.Helper()
	select {
	case event := <-s.Events():
		t.Fatalf("unexpected event %+v", event)
	default:
	}
}

func TestHub_DeliversToMatchingSubscribers(t *testing.T) {
	hub := NewHub(8, nil, nil, zaptest.NewLogger(t).Sugar())

	all := hub.Subscribe(Subscription{Collection: domain.CollectionVideos})
	one := hub.Subscribe(Subscription{Collection: domain.CollectionVideos, DocID: "v1"})
	pages := hub.Subscribe(Subscription{Collection: domain.CollectionPages})
	assert.Equal(t, 3, hub.Count())

	hub.Deliver(videoEvent("v1", domain.ChangeModified))
	hub.Deliver(videoEvent("v2", domain.ChangeAdded))

	assert.Equal(t, "v1", receive(t, all).DocID)
	assert.Equal(t, "v2", receive(t, all).DocID)
	assert.Equal(t, "v1", receive(t, one).DocID)
	assertEmpty(t, one)
	assertEmpty(t, pages)
}

func TestHub_AppliesFilter(t *testing.T) {
	filter := func(viewer domain.Viewer, event domain.ChangeEvent) (domain.ChangeEvent, bool) {
		if viewer.IsAdmin() {
			return event, true
		}
		if event.DocID == "hidden" {
			return domain.ChangeEvent{}, false
		}
		event.Type = domain.ChangeRemoved
		event.Document = nil
		return event, true
	}
	hub := NewHub(8, filter, nil, zaptest.NewLogger(t).Sugar())

	admin := hub.Subscribe(Subscription{Collection: domain.CollectionVideos, Viewer: domain.Viewer{UserID: "a", Role: domain.RoleAdmin}})
	guest := hub.Subscribe(Subscription{Collection: domain.CollectionVideos})

	hub.Deliver(videoEvent("hidden", domain.ChangeModified))
	hub.Deliver(videoEvent("v1", domain.ChangeModified))

	assert.Equal(t, "hidden", receive(t, admin).DocID)
	assert.Equal(t, domain.ChangeModified, receive(t, admin).Type)

	got := receive(t, guest)
	assert.Equal(t, "v1", got.DocID)
	assert.Equal(t, domain.ChangeRemoved, got.Type)
	assertEmpty(t, guest)
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil, nil, zaptest.NewLogger(t).Sugar())
	slow := hub.Subscribe(Subscription{Collection: domain.CollectionVideos})

	hub.Deliver(videoEvent("v1", domain.ChangeAdded))
	hub.Deliver(videoEvent("v2", domain.ChangeAdded))

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, "v1", receive(t, slow).DocID)
	_, ok := <-slow.Events()
	assert.False(t, ok)

	// Unsubscribing a dropped subscriber is harmless.
	hub.Unsubscribe(slow)
}

func TestHub_PublishForwardsToBus(t *testing.T) {
	hub := NewHub(8, nil, nil, zaptest.NewLogger(t).Sugar())
	sub := hub.Subscribe(Subscription{Collection: domain.CollectionVideos})

	var heard []string
	hub.AddListener(func(event domain.ChangeEvent) {
		heard = append(heard, event.DocID)
	})

	require.NoError(t, hub.Publish(context.Background(), videoEvent("v1", domain.ChangeAdded)))

	bus := &recordingBus{}
	hub.SetBus(bus)
	require.NoError(t, hub.Publish(context.Background(), videoEvent("v2", domain.ChangeAdded)))

	bus.err = errors.New("redis down")
	assert.Error(t, hub.Publish(context.Background(), videoEvent("v3", domain.ChangeAdded)))

	// Local delivery happens even when the bus fails.
	assert.Equal(t, "v1", receive(t, sub).DocID)
	assert.Equal(t, "v2", receive(t, sub).DocID)
	assert.Equal(t, "v3", receive(t, sub).DocID)

	require.Len(t, bus.events, 2)
	assert.Equal(t, "v2", bus.events[0].DocID)
	assert.Equal(t, []string{"v1", "v2", "v3"}, heard)
}

func TestHub_UnsubscribeAndClose(t *testing.T) {
	hub := NewHub(8, nil, nil, zaptest.NewLogger(t).Sugar())
	a := hub.Subscribe(Subscription{Collection: domain.CollectionTheme})
	b := hub.Subscribe(Subscription{Collection: domain.CollectionUsers})

	hub.Unsubscribe(a)
	hub.Unsubscribe(a)
	assert.Equal(t, 1, hub.Count())

	hub.Close()
	assert.Equal(t, 0, hub.Count())
	_, ok := <-b.Events()
	assert.False(t, ok)
}

func TestHub_RemovalsOnlyForHeldDocuments(t *testing.T) {
	hub := NewHub(8, nil, nil, zaptest.NewLogger(t).Sugar())

	sub := hub.Subscribe(Subscription{Collection: domain.CollectionVideos})
	sub.Seed([]string{"v1"})

	hub.Deliver(videoEvent("v9", domain.ChangeRemoved))
	assertEmpty(t, sub)

	hub.Deliver(videoEvent("v1", domain.ChangeRemoved))
	assert.Equal(t, "v1", receive(t, sub).DocID)

	// Dropped once, the document is no longer held.
	hub.Deliver(videoEvent("v1", domain.ChangeRemoved))
	assertEmpty(t, sub)

	hub.Deliver(videoEvent("v2", domain.ChangeAdded))
	assert.Equal(t, domain.ChangeAdded, receive(t, sub).Type)
	hub.Deliver(videoEvent("v2", domain.ChangeRemoved))
	assert.Equal(t, domain.ChangeRemoved, receive(t, sub).Type)

	unseeded := hub.Subscribe(Subscription{Collection: domain.CollectionVideos})
	hub.Deliver(videoEvent("v3", domain.ChangeRemoved))
	assert.Equal(t, "v3", receive(t, unseeded).DocID)
}

func TestSnapshotDocIDs(t *testing.T) {
	ids, ok := snapshotDocIDs([]*domain.Video{{ID: "v1"}, {ID: "v2"}})
	require.True(t, ok)
	assert.Equal(t, []string{"v1", "v2"}, ids)

	ids, ok = snapshotDocIDs([]*domain.Page{{Slug: "about"}})
	require.True(t, ok)
	assert.Equal(t, []string{"about"}, ids)

	ids, ok = snapshotDocIDs([]domain.Profile{})
	require.True(t, ok)
	assert.Empty(t, ids)

	_, ok = snapshotDocIDs(domain.DefaultTheme())
	assert.False(t, ok)
}
