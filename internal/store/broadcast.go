package store

import (
	"context"
	"sync"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
)

// broadcaster fans committed snapshots out to per-subscriber outbox
// channels. A subscriber whose buffer is full is dropped rather than
// allowed to stall commits, so publishing never blocks.
type broadcaster struct {
	mu      sync.Mutex
	next    int
	subs    map[string]map[int]chan Snapshot
	dirSubs map[int]chan []engine.Room
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		subs:    make(map[string]map[int]chan Snapshot),
		dirSubs: make(map[int]chan []engine.Room),
	}
}

func (b *broadcaster) subscribe(ctx context.Context, code string, initial Snapshot) <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	ch <- initial

	b.mu.Lock()
	if b.subs[code] == nil {
		b.subs[code] = make(map[int]chan Snapshot)
	}
	id := b.next
	b.next++
	b.subs[code][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if c, ok := b.subs[code][id]; ok {
			delete(b.subs[code], id)
			close(c)
		}
		b.mu.Unlock()
	}()

	return ch
}

func (b *broadcaster) subscribeDirectory(ctx context.Context, initial []engine.Room) <-chan []engine.Room {
	ch := make(chan []engine.Room, 8)
	ch <- initial

	b.mu.Lock()
	id := b.next
	b.next++
	b.dirSubs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if c, ok := b.dirSubs[id]; ok {
			delete(b.dirSubs, id)
			close(c)
		}
		b.mu.Unlock()
	}()

	return ch
}

func (b *broadcaster) publish(code string, snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs[code] {
		select {
		case ch <- snap:
		default:
			// Subscriber is slow or gone - drop it.
			delete(b.subs[code], id)
			close(ch)
		}
	}
	if snap.Deleted {
		for id, ch := range b.subs[code] {
			delete(b.subs[code], id)
			close(ch)
		}
		delete(b.subs, code)
	}
}

func (b *broadcaster) publishDirectory(rooms []engine.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.dirSubs {
		select {
		case ch <- rooms:
		default:
			delete(b.dirSubs, id)
			close(ch)
		}
	}
}
