package service

import (
	"sort"
	"sync"
)

// KeyedLocker hands out one mutex per key. Ledger mutations take the locks
// for every product and entity they touch so stock and balance changes are
// serialized per key. A key is forgotten once its last holder or waiter
// releases it.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

func (l *KeyedLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &keyLock{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return m
}

func (l *KeyedLocker) release(key string, m *keyLock) {
	m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock acquires every key in sorted order (deduplicated) and returns the
// matching unlock func. Calling unlock more than once is a no-op, so a caller
// can defer it and still release early.
func (l *KeyedLocker) Lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	held := make([]*keyLock, 0, len(sorted))
	for _, k := range sorted {
		held = append(held, l.acquire(k))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				l.release(sorted[i], held[i])
			}
		})
	}
}

func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func entityKey(id string) string  { return "entity:" + id }
func productKey(id string) string { return "product:" + id }
func txKey(id string) string      { return "tx:" + id }
