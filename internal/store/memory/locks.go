package memory

import (
	"context"
	"sync"
)

// keyLocks hands out one exclusive lock per string key. Waiting honours ctx.
// An entry lives only while some caller holds or waits for its key.
type keyLocks struct {
	mu   sync.Mutex
	sems map[string]*keySem
}

type keySem struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{sems: make(map[string]*keySem)}
}

func (l *keyLocks) ref(key string) *keySem {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = &keySem{ch: make(chan struct{}, 1)}
		l.sems[key] = s
	}
	s.refs++
	return s
}

func (l *keyLocks) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sems[key]
	if s.refs--; s.refs == 0 {
		delete(l.sems, key)
	}
}

func (l *keyLocks) acquire(ctx context.Context, key string) error {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(key)
		return ctx.Err()
	}
}

func (l *keyLocks) release(key string) {
	l.mu.Lock()
	s := l.sems[key]
	l.mu.Unlock()
	<-s.ch
	l.unref(key)
}

func (l *keyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sems)
}
