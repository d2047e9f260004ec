package generation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type cycleKey struct {
	chatID uuid.UUID
	target int
}

type cycle struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// inflight tracks running cycles and per-chat commit locks.
type inflight struct {
	mu     sync.Mutex
	seq    uint64
	cycles map[cycleKey]cycle
	locks  map[uuid.UUID]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newInflight() *inflight {
	return &inflight{
		cycles: make(map[cycleKey]cycle),
		locks:  make(map[uuid.UUID]*chatLock),
	}
}

// begin registers a cycle for key and cancels the one it replaces. The
// returned func releases the registration.
func (f *inflight) begin(ctx context.Context, key cycleKey) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	f.mu.Lock()
	if prev, ok := f.cycles[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	f.seq++
	seq := f.seq
	f.cycles[key] = cycle{seq: seq, cancel: cancel}
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		if cur, ok := f.cycles[key]; ok && cur.seq == seq {
			delete(f.cycles, key)
		}
		f.mu.Unlock()
		cancel(nil)
	}
}

// lock serializes baseline reads and commits within one chat.
func (f *inflight) lock(chatID uuid.UUID) func() {
	f.mu.Lock()
	l, ok := f.locks[chatID]
	if !ok {
		l = &chatLock{}
		f.locks[chatID] = l
	}
	l.refs++
	f.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		f.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, chatID)
		}
		f.mu.Unlock()
	}
}

// running reports how many cycles are registered.
func (f *inflight) running() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cycles)
}
