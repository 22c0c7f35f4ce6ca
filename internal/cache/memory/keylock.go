package memory

import (
	"context"
	"sync"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// KeyLocker is a keyed mutex. Waiters for one key queue on a one-slot
// channel so they can give up when their context ends; entries are freed
// once no holder or waiter remains.
type KeyLocker struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

// NewKeyLocker creates an empty KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{keys: make(map[string]*keyEntry)}
}

// Lock blocks until key is free or ctx is done.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *KeyLocker) release(key string, e *keyEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

// Held returns the number of keys with a holder or waiter.
func (l *KeyLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

var _ domain.KeyLocker = (*KeyLocker)(nil)
