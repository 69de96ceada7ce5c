package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UndoToken is a single-use capability to restore one deletion.
type UndoToken struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Count     int       `json:"count"`
}

type undoEntry struct {
	snapshot  []Task
	createdAt time.Time
	expiresAt time.Time
	usedAt    time.Time
}

func (e *undoEntry) used() bool { return !e.usedAt.IsZero() }

// Ledger holds snapshots of deleted tasks keyed by opaque tokens. Consumed and
// expired entries linger as tombstones for one extra TTL so a late restore
// can be told apart from an unknown token; Purge drops them after that.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*undoEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewLedger(ttl time.Duration, now func() time.Time) *Ledger {
	if now == nil {
		now = timeNow
	}
	if ttl <= 0 {
		ttl = DefaultUndoTTL
	}
	return &Ledger{
		entries: make(map[string]*undoEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (l *Ledger) TTL() time.Duration { return l.ttl }

// Issue stores a copy of snapshot and returns its token.
func (l *Ledger) Issue(snapshot []Task) UndoToken {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.purgeLocked(now)

	e := &undoEntry{
		snapshot:  cloneTasks(snapshot),
		createdAt: now,
		expiresAt: now.Add(l.ttl),
	}
	token := uuid.NewString()
	l.entries[token] = e
	return UndoToken{Token: token, CreatedAt: e.createdAt, ExpiresAt: e.expiresAt, Count: len(e.snapshot)}
}

// Consume returns the snapshot for token and marks it used.
func (l *Ledger) Consume(token string) ([]Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.purgeLocked(now)

	e, ok := l.entries[token]
	if !ok {
		return nil, fmt.Errorf("%w: undo token %q", ErrNotFound, token)
	}
	if e.used() {
		return nil, fmt.Errorf("%w: undone at %s", ErrAlreadyUsed, e.usedAt.Format(time.RFC3339))
	}
	if !now.Before(e.expiresAt) {
		return nil, fmt.Errorf("%w: expired at %s", ErrExpired, e.expiresAt.Format(time.RFC3339))
	}
	e.usedAt = now
	snapshot := e.snapshot
	e.snapshot = nil
	return snapshot, nil
}

// Purge drops tombstones past their retention window and reports how many
// entries were removed.
func (l *Ledger) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purgeLocked(l.now())
}

// Len reports the number of entries still tracked, tombstones included.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run purges every interval until ctx is done.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Purge()
		}
	}
}

func (l *Ledger) purgeLocked(now time.Time) int {
	n := 0
	for token, e := range l.entries {
		if now.Sub(e.expiresAt) >= l.ttl {
			delete(l.entries, token)
			n++
			continue
		}
		// Expired but not yet past retention: keep the tombstone, free the tasks.
		if !now.Before(e.expiresAt) && e.snapshot != nil {
			e.snapshot = nil
		}
	}
	return n
}
