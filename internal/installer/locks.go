package installer

import (
	"sort"
	"sync"
)

// keyLocks hands out one mutex per package name. Entries are dropped when
// no holder or waiter remains.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// Lock blocks until name is free and returns the release function.
func (k *keyLocks) Lock(name string) func() {
	k.mu.Lock()
	l, ok := k.locks[name]
	if !ok {
		l = &keyLock{}
		k.locks[name] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, name)
		}
		k.mu.Unlock()
	}
}

// LockAll locks every distinct name in sorted order, so two bulk
// operations over overlapping sets cannot deadlock.
func (k *keyLocks) LockAll(names []string) func() {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var unlocks []func()
	for i, n := range sorted {
		if i > 0 && sorted[i-1] == n {
			continue
		}
		unlocks = append(unlocks, k.Lock(n))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
