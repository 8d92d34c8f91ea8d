package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const sessionCookieName = "cutroom_session"

// Session is a logged-in browser's bearer token. IDs are random; the
// server keeps the authoritative copy, the client only carries the ID
// in a cookie.
type Session struct {
	ID        string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionManager tracks live sessions in memory. Expiry is enforced at
// lookup time, the same way edit-lock tokens expire; there is no
// background reaper. Stale entries are swept whenever a new session is
// minted, which bounds the map to active users plus recent churn.
type SessionManager struct {
	mutex         sync.Mutex
	sessions      map[string]*Session
	ttl           time.Duration
	secureCookies bool
}

// NewSessionManager creates a session manager whose sessions live for
// the given duration past their last refresh.
func NewSessionManager(ttl time.Duration, secureCookies bool) *SessionManager {
	return &SessionManager{
		sessions:      make(map[string]*Session),
		ttl:           ttl,
		secureCookies: secureCookies,
	}
}

// CreateSession mints a session for the user.
func (sm *SessionManager) CreateSession(username string) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	now := time.Now()
	sm.sweepLocked(now)

	session := &Session{
		ID:        id,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(sm.ttl),
	}
	sm.sessions[id] = session
	return copySession(session), nil
}

// GetSession returns the live session with the given ID. Expired
// sessions are dropped on the spot.
func (sm *SessionManager) GetSession(sessionID string) (*Session, bool) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, false
	}
	if time.Now().After(session.ExpiresAt) {
		delete(sm.sessions, sessionID)
		return nil, false
	}
	return copySession(session), true
}

// RefreshSession slides a live session's expiry forward. Returns false
// when the session is unknown or already expired.
func (sm *SessionManager) RefreshSession(sessionID string) bool {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return false
	}
	now := time.Now()
	if now.After(session.ExpiresAt) {
		delete(sm.sessions, sessionID)
		return false
	}
	session.ExpiresAt = now.Add(sm.ttl)
	return true
}

// DeleteSession logs the session out.
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mutex.Lock()
	delete(sm.sessions, sessionID)
	sm.mutex.Unlock()
}

// DeleteUserSessions logs a user out everywhere. Called when an admin
// removes the account.
func (sm *SessionManager) DeleteUserSessions(username string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for id, session := range sm.sessions {
		if session.Username == username {
			delete(sm.sessions, id)
		}
	}
}

// SetSessionCookie writes the session cookie on the response.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   sm.secureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// ClearSessionCookie expires the session cookie.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   sm.secureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// GetSessionFromRequest resolves the request's session cookie.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, false
	}
	return sm.GetSession(cookie.Value)
}

// sweepLocked drops every expired session. Caller holds the write lock.
func (sm *SessionManager) sweepLocked(now time.Time) {
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
}

// copySession hands callers a copy so later refreshes do not race
// with their reads.
func copySession(session *Session) *Session {
	out := *session
	return &out
}

func newSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
