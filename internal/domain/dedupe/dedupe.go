// Package dedupe tracks request ids so a retried mutation is applied once.
//
// Bin clicks and unscored toggles flip state, so replaying the same request
// after a timeout would undo it. Callers record the request id before
// applying and unrecord it when the request did not go through.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen request ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it
	// if not. The check and the write are atomic.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the request can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// node is one entry of the insertion-ordered list.
type node struct {
	id         string
	prev, next *node
}

// inMemoryDeduper keeps at most maxSize ids and forgets the oldest first.
// With maxSize <= 0 it never forgets.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*node
	oldest  *node
	newest  *node
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
		seen:    make(map[string]*node),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key scopes a request id to a session.
func Key(sessionID, requestID string) string {
	return sessionID + "/" + requestID
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.unlink(d.oldest)
	}
	n := &node{id: id, prev: d.newest}
	if d.newest != nil {
		d.newest.next = n
	} else {
		d.oldest = n
	}
	d.newest = n
	d.seen[id] = n
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.seen[id]; ok {
		d.unlink(n)
	}
}

// unlink removes n. Must be called with d.mu held.
func (d *inMemoryDeduper) unlink(n *node) {
	if n == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.oldest = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.newest = n.prev
	}
	delete(d.seen, n.id)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
