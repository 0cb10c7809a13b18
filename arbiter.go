package auth

import (
	"context"
)

// unknownPrincipal labels logout diagnostics when the session attribute
// cannot be read back.
const unknownPrincipal = "unknown"

// SessionArbiter enforces at most one active session per principal,
// unless a force login explicitly evicts the competition.
type SessionArbiter struct {
	registry     SessionRegistry
	logger       Logger
	activitySink ActivitySink
}

// NewSessionArbiter returns an arbiter over the given registry
func NewSessionArbiter(registry SessionRegistry) *SessionArbiter {
	return &SessionArbiter{
		registry:     registry,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (a *SessionArbiter) WithLogger(logger Logger) *SessionArbiter {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithActivitySink configures an ActivitySink for takeover and logout events.
func (a *SessionArbiter) WithActivitySink(sink ActivitySink) *SessionArbiter {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// CurrentSessionID extracts the transport session id from the request,
// returning "" when the request carries no session
func CurrentSessionID(transport SessionTransport) string {
	if sess, ok := transport.Current(); ok {
		return sess.ID()
	}
	return ""
}

// CheckDuplicateSession enforces the single session rule for a freshly
// authenticated principal. currentSessionID is the transport session id
// captured before credential verification ran, so the principal's own
// session never counts as competition. Without isForce a competing
// session rejects the login; with it the competition is expired and the
// login may proceed. Callers run this before writing any login
// bookkeeping: a rejected attempt must leave no trace.
func (a *SessionArbiter) CheckDuplicateSession(ctx context.Context, principal Principal, currentSessionID string, isForce bool) error {
	related := a.relatedSessions(principal, currentSessionID)
	if len(related) == 0 {
		return nil
	}

	a.logger.Debug("related session count: %d", len(related))

	loginID := principal.LoginID()
	if !isForce {
		a.logger.Error("login denied: other session found for [%s]", loginID)
		return ErrAlreadyLogin
	}

	// every expiry is independent so one miss never blocks the rest
	for _, info := range related {
		info.ExpireNow()
	}
	a.logger.Info("force login: expired %d other session(s) for [%s]", len(related), loginID)
	a.emitEvent(ctx, ActivityEventSessionTakeover, principal.ID(), map[string]any{
		"login_id":         loginID,
		"expired_sessions": len(related),
	})

	return nil
}

func (a *SessionArbiter) relatedSessions(principal Principal, currentSessionID string) []*SessionInfo {
	existing := a.registry.AllSessions(principal.LoginID(), false)

	related := make([]*SessionInfo, 0, len(existing))
	for _, info := range existing {
		if info.SessionID() != currentSessionID {
			related = append(related, info)
		}
	}
	return related
}

// BindSession attaches the principal to the transport session and
// registers it. prevSessionID is the id captured before verification
// ran; the transport may have expired or rotated the session since,
// which is why registration compares it against the id observed here.
func (a *SessionArbiter) BindSession(principal Principal, transport SessionTransport, prevSessionID string) {
	sess := transport.GetOrCreate()
	sess.Attach(principal)

	loginID := principal.LoginID()
	if isNewSession(prevSessionID, sess.ID()) {
		a.registry.RegisterNewSession(sess.ID(), loginID)
		a.logger.Debug("new session registered for [%s] - sessionId: %s", loginID, sess.ID())
	} else if info := a.registry.GetSessionInfo(prevSessionID); info != nil {
		// same transport session re-authenticated, bump it instead of
		// adding a duplicate bookkeeping entry
		info.Refresh()
		a.logger.Debug("session refreshed for [%s] - sessionId: %s", loginID, sess.ID())
	}

	a.logger.Info("session-based login completed - [%s]", loginID)
}

func isNewSession(prevSessionID, justNowSessionID string) bool {
	// the transport session can expire between the id capture and the
	// attach above, compare ids to defend against that window
	return prevSessionID == "" || prevSessionID != justNowSessionID
}

// InvalidateSession tears down the transport session and expires its
// registry entry. Logging out without a session is a no-op, never an error.
func (a *SessionArbiter) InvalidateSession(ctx context.Context, transport SessionTransport) {
	sess, ok := transport.Current()
	if !ok {
		a.logger.Info("logout attempt with no session")
		return
	}

	loginID := extractLoginID(a.logger, sess)

	a.expireSessionInfo(sess.ID(), loginID)
	sess.Invalidate()

	a.emitEvent(ctx, ActivityEventLogout, "", map[string]any{"login_id": loginID})
	a.logger.Info("session-based logout completed - [%s]", loginID)
}

func extractLoginID(logger Logger, sess TransportSession) string {
	principal, ok := sess.Principal()
	if !ok || principal == nil {
		// a corrupt or missing session attribute must not block teardown
		logger.Error("failed to extract login id from session")
		return unknownPrincipal
	}
	return principal.LoginID()
}

func (a *SessionArbiter) expireSessionInfo(sessionID, loginID string) {
	info := a.registry.GetSessionInfo(sessionID)
	if info == nil {
		// unknown to the registry, nothing to expire
		return
	}
	info.ExpireNow()
	a.logger.Debug("session expired in registry for [%s] - sessionId: %s", loginID, sessionID)
}

func (a *SessionArbiter) emitEvent(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Actor:     ActorRef{Type: "user", ID: accountID},
		AccountID: accountID,
		Metadata:  metadata,
	}
	if err := normalizeActivitySink(a.activitySink).Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}
