package app

import (
	"context"
	"sync"
)

// MemoryLocker is the in-process MoveLocker used when no shared lock backend is configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker constructs an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]struct{}{}}
}

// TryLock claims taskID if nobody holds it.
func (l *MemoryLocker) TryLock(_ context.Context, taskID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[taskID]; ok {
		return false, nil
	}
	l.held[taskID] = struct{}{}
	return true, nil
}

// Unlock releases taskID.
func (l *MemoryLocker) Unlock(_ context.Context, taskID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, taskID)
	return nil
}

// Held reports whether taskID is currently claimed.
func (l *MemoryLocker) Held(taskID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[taskID]
	return ok
}
