package broker

import (
	"sync"

	"github.com/travelbuddy/internal/logger"
)

// Memory is the in-process subscription table. Reads (publish) and writes
// (subscribe/unsubscribe/drop) run concurrently from many connections; the
// subscriber set is snapshotted under the read lock and dispatch happens
// outside it, so a slow subscriber never holds the table.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]map[Subscriber]struct{})}
}

func (b *Memory) Subscribe(roomID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[roomID]
	if !ok {
		subs = make(map[Subscriber]struct{})
		b.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
}

func (b *Memory) Unsubscribe(roomID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.rooms, roomID)
	}
}

func (b *Memory) Publish(roomID string, ev Event) {
	b.mu.RLock()
	subs, ok := b.rooms[roomID]
	if !ok {
		b.mu.RUnlock()
		return
	}
	targets := make([]Subscriber, 0, len(subs))
	for s := range subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.Deliver(ev); err != nil {
			logger.Errorf("broker: deliver room=%s: %v", roomID, err)
		}
	}
}

func (b *Memory) Drop(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for roomID, subs := range b.rooms {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.rooms, roomID)
		}
	}
}
