package cache

import (
	"context"
	"sync"
	"time"
)

// LocalJobLock is the in-process job lock used when Redis is not configured.
type LocalJobLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewLocalJobLock() *LocalJobLock {
	return &LocalJobLock{held: map[string]time.Time{}, nowFn: time.Now}
}

func (l *LocalJobLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	l.held[key] = until
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(until) {
			delete(l.held, key)
		}
	}, true, nil
}
