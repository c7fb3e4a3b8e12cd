package service

import "sync"

// accountLocker serializes store commits per account. Parsing is free to
// run concurrently; the cached balance and the dedup window are only
// consistent if at most one commit touches an account at a time. Realtime
// events arriving during a bulk import block here until the bulk chunk
// holding the same account commits.
type accountLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocker() *accountLocker {
	return &accountLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocker) lockFor(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}
