package auth

import (
	"sync"
	"time"
)

// SessionRegistry is the shared bookkeeping of active sessions per
// principal. Implementations must be safe for concurrent use.
type SessionRegistry interface {
	AllSessions(principal string, includeExpired bool) []*SessionInfo
	RegisterNewSession(sessionID, principal string)
	GetSessionInfo(sessionID string) *SessionInfo
}

// SessionInfo is one registry entry. Expiring an entry marks it dead for
// arbitration purposes; the transport session it mirrors is torn down
// separately.
type SessionInfo struct {
	mu          sync.Mutex
	sessionID   string
	principal   string
	lastRequest time.Time
	expired     bool
}

// SessionID returns the transport session identifier this entry tracks
func (s *SessionInfo) SessionID() string {
	return s.sessionID
}

// PrincipalName returns the owning principal's login id
func (s *SessionInfo) PrincipalName() string {
	return s.principal
}

// LastRequest returns the last activity marker
func (s *SessionInfo) LastRequest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

// Expired reports whether the entry has been expired
func (s *SessionInfo) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// ExpireNow marks the entry expired. Safe to call repeatedly.
func (s *SessionInfo) ExpireNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// Refresh bumps the last activity marker
func (s *SessionInfo) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = time.Now()
}

// MemorySessionRegistry is the default in process SessionRegistry
type MemorySessionRegistry struct {
	mu          sync.RWMutex
	byID        map[string]*SessionInfo
	byPrincipal map[string]map[string]*SessionInfo
}

var _ SessionRegistry = (*MemorySessionRegistry)(nil)

// NewMemorySessionRegistry creates an empty registry
func NewMemorySessionRegistry() *MemorySessionRegistry {
	return &MemorySessionRegistry{
		byID:        map[string]*SessionInfo{},
		byPrincipal: map[string]map[string]*SessionInfo{},
	}
}

// AllSessions returns the entries registered for the principal, skipping
// expired ones unless includeExpired is set. An active-only lookup also
// drops the expired entries it walks past, so the registry does not
// accumulate dead bookkeeping across logins.
func (r *MemorySessionRegistry) AllSessions(principal string, includeExpired bool) []*SessionInfo {
	if includeExpired {
		r.mu.RLock()
		defer r.mu.RUnlock()

		entries := make([]*SessionInfo, 0, len(r.byPrincipal[principal]))
		for _, info := range r.byPrincipal[principal] {
			entries = append(entries, info)
		}
		return entries
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]*SessionInfo, 0, len(r.byPrincipal[principal]))
	for id, info := range r.byPrincipal[principal] {
		if info.Expired() {
			delete(r.byPrincipal[principal], id)
			delete(r.byID, id)
			continue
		}
		active = append(active, info)
	}
	if len(r.byPrincipal[principal]) == 0 {
		delete(r.byPrincipal, principal)
	}
	return active
}

// RegisterNewSession records a fresh entry for the principal. Registering
// an id that already exists replaces the stale entry.
func (r *MemorySessionRegistry) RegisterNewSession(sessionID, principal string) {
	info := &SessionInfo{
		sessionID:   sessionID,
		principal:   principal,
		lastRequest: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byID[sessionID]; ok {
		delete(r.byPrincipal[prev.principal], sessionID)
	}

	r.byID[sessionID] = info
	if r.byPrincipal[principal] == nil {
		r.byPrincipal[principal] = map[string]*SessionInfo{}
	}
	r.byPrincipal[principal][sessionID] = info
}

// GetSessionInfo returns the entry for the session id, or nil
func (r *MemorySessionRegistry) GetSessionInfo(sessionID string) *SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[sessionID]
}
