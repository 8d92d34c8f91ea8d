package editlock

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Lock records which editing session currently holds a project's
// exclusive write token.
type Lock struct {
	ProjectID  string    `json:"projectId"`
	SessionID  string    `json:"sessionId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	LastBeat   time.Time `json:"lastBeat"`
}

// Manager hands out one exclusive edit token per project. Tokens expire
// when the holder stops heartbeating, so a crashed tab cannot wedge a
// project forever. Readers never need a token; every mutation does.
type Manager struct {
	locks   map[string]*Lock // keyed by project ID
	mutex   sync.RWMutex
	timeout time.Duration
}

// NewManager creates a lock manager with the given heartbeat timeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		locks:   make(map[string]*Lock),
		timeout: timeout,
	}
}

// GenerateSessionID creates a new unique editing session ID.
func (m *Manager) GenerateSessionID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Acquire takes the project's edit token for the given session. It
// succeeds when the project is unlocked, the session already holds the
// token, or the previous holder's token has expired. Returns the current
// lock state and whether the caller holds it.
func (m *Manager) Acquire(projectID, sessionID string) (*Lock, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	if lock, exists := m.locks[projectID]; exists {
		if lock.SessionID == sessionID || now.Sub(lock.LastBeat) > m.timeout {
			lock.SessionID = sessionID
			lock.AcquiredAt = now
			lock.LastBeat = now
			return snapshot(lock), true
		}
		return snapshot(lock), false
	}

	lock := &Lock{
		ProjectID:  projectID,
		SessionID:  sessionID,
		AcquiredAt: now,
		LastBeat:   now,
	}
	m.locks[projectID] = lock
	return snapshot(lock), true
}

// Heartbeat extends the holder's token. Returns false when the session
// no longer holds the lock (expired and taken over, or released).
func (m *Manager) Heartbeat(projectID, sessionID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	lock, exists := m.locks[projectID]
	if !exists || lock.SessionID != sessionID {
		return false
	}
	if time.Since(lock.LastBeat) > m.timeout {
		// Expired; the token is up for grabs but this holder lost it.
		delete(m.locks, projectID)
		return false
	}
	lock.LastBeat = time.Now()
	return true
}

// Release gives the token back. Only the holder can release.
func (m *Manager) Release(projectID, sessionID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	lock, exists := m.locks[projectID]
	if !exists || lock.SessionID != sessionID {
		return false
	}
	delete(m.locks, projectID)
	return true
}

// Holds reports whether the session currently holds a live token for
// the project. This is what engine WriteGuards consult.
func (m *Manager) Holds(projectID, sessionID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	lock, exists := m.locks[projectID]
	if !exists || lock.SessionID != sessionID {
		return false
	}
	return time.Since(lock.LastBeat) <= m.timeout
}

// Holder returns the current lock state for a project, or nil when
// unlocked or expired.
func (m *Manager) Holder(projectID string) *Lock {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	lock, exists := m.locks[projectID]
	if !exists || time.Since(lock.LastBeat) > m.timeout {
		return nil
	}
	return snapshot(lock)
}

// snapshot copies a lock so callers never see later mutation.
func snapshot(lock *Lock) *Lock {
	out := *lock
	return &out
}
