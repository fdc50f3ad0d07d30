// Package lockmap provides per-key read/write locks whose entries are dropped
// once the last holder releases them.
package lockmap

import (
	"sort"
	"sync"
)

type holderLock struct {
	holders int
	mu      sync.RWMutex
}

type Lockmap struct {
	l sync.Mutex
	m map[string]*holderLock
}

func New(initSize int) *Lockmap {
	return &Lockmap{
		m: make(map[string]*holderLock, initSize),
	}
}

func (l *Lockmap) Lock(key string) {
	l.acquire(key).mu.Lock()
}

func (l *Lockmap) Unlock(key string) {
	l.release(key, true)
}

func (l *Lockmap) RLock(key string) {
	l.acquire(key).mu.RLock()
}

func (l *Lockmap) RUnlock(key string) {
	l.release(key, false)
}

// LockAll write-locks every key in sorted order so that two callers sharing
// keys can never deadlock. The returned func releases them.
func (l *Lockmap) LockAll(keys []string) func() {
	sorted := dedup(keys)
	for _, k := range sorted {
		l.Lock(k)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			l.Unlock(sorted[i])
		}
	}
}

// RLockAll is LockAll with read locks.
func (l *Lockmap) RLockAll(keys []string) func() {
	sorted := dedup(keys)
	for _, k := range sorted {
		l.RLock(k)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			l.RUnlock(sorted[i])
		}
	}
}

func (l *Lockmap) acquire(key string) *holderLock {
	l.l.Lock()
	defer l.l.Unlock()
	hl, ok := l.m[key]
	if !ok {
		hl = &holderLock{}
		l.m[key] = hl
	}
	hl.holders++
	return hl
}

func (l *Lockmap) release(key string, write bool) {
	l.l.Lock()
	hl := l.m[key]
	hl.holders--
	if hl.holders == 0 {
		delete(l.m, key)
	}
	l.l.Unlock()

	if write {
		hl.mu.Unlock()
	} else {
		hl.mu.RUnlock()
	}
}

// Locks returns the number of keys currently held or waited on.
func (l *Lockmap) Locks() int {
	l.l.Lock()
	defer l.l.Unlock()

	return len(l.m)
}

func dedup(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
