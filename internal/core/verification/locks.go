package verification

import "sync"

// LockManager is the process-local single-flight lock keyed by task id.
// Acquire is a try-lock: callers that get false must treat the task as
// already in progress and skip, never wait.
//
// The lock is advisory and in-memory only. It prevents double-processing
// within one running process and confers no cross-process or crash-safe
// guarantee; if multi-process safety is ever needed, this is the seam to
// swap in a distributed lock.
type LockManager struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLockManager creates an empty lock manager. Construct one per
// process (or per test) and inject it; there is no global instance.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]struct{})}
}

// Acquire marks the id held and returns true, or returns false if it
// is already held.
func (m *LockManager) Acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[id]; ok {
		return false
	}
	m.held[id] = struct{}{}
	return true
}

// Release clears the id unconditionally.
func (m *LockManager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, id)
}

// Held reports whether the id is currently held.
func (m *LockManager) Held(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[id]
	return ok
}
