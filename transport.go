package auth

import (
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// CookieTransport realizes the transport session as a JWT signed session
// id cookie on the current request. One instance is bound to one request.
type CookieTransport struct {
	ctx        router.Context
	tokens     *SessionTokenService
	cookieName string
	duration   time.Duration
	logger     Logger
	current    *cookieSession
	resolved   bool
}

var _ SessionTransport = (*CookieTransport)(nil)

// NewCookieTransport binds a transport to the request context
func NewCookieTransport(c router.Context, tokens *SessionTokenService, cfg Config) *CookieTransport {
	duration := 24 * time.Hour
	if cfg.GetSessionDuration() > 0 {
		duration = cfg.GetSessionDuration()
	}

	return &CookieTransport{
		ctx:        c,
		tokens:     tokens,
		cookieName: cfg.GetSessionCookieName(),
		duration:   duration,
		logger:     defLogger{},
	}
}

func (t *CookieTransport) WithLogger(logger Logger) *CookieTransport {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// Current returns the session carried by the request cookie, if the cookie
// is present and its signature verifies
func (t *CookieTransport) Current() (TransportSession, bool) {
	if t.resolved {
		if t.current == nil {
			return nil, false
		}
		return t.current, true
	}
	t.resolved = true

	raw := t.ctx.Cookies(t.cookieName)
	if raw == "" {
		return nil, false
	}

	claims, err := t.tokens.Validate(raw)
	if err != nil {
		// a garbled cookie is treated as no session at all
		t.logger.Debug("session cookie rejected: %v", err)
		return nil, false
	}

	t.current = &cookieSession{
		id:        claims.SID,
		subject:   claims.Subject,
		transport: t,
	}
	return t.current, true
}

// GetOrCreate returns the current session or issues a brand new one
func (t *CookieTransport) GetOrCreate() TransportSession {
	if sess, ok := t.Current(); ok {
		return sess
	}

	t.current = &cookieSession{
		id:        uuid.NewString(),
		transport: t,
	}
	t.resolved = true
	return t.current
}

func (t *CookieTransport) writeCookie(sessionID, subject string) {
	token, err := t.tokens.Mint(sessionID, subject)
	if err != nil {
		t.logger.Error("failed to mint session cookie: %v", err)
		return
	}

	t.ctx.Cookie(&router.Cookie{
		Name:     t.cookieName,
		Value:    token,
		Expires:  time.Now().Add(t.duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (t *CookieTransport) deleteCookie() {
	t.ctx.Cookie(&router.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// cookieSession is one transport session backed by the signed cookie
type cookieSession struct {
	id        string
	subject   string
	principal Principal
	transport *CookieTransport
}

var _ TransportSession = (*cookieSession)(nil)

func (s *cookieSession) ID() string {
	return s.id
}

// Principal returns the attached identity. For a request that only carries
// the cookie, a minimal principal is rebuilt from the token subject.
func (s *cookieSession) Principal() (Principal, bool) {
	if s.principal != nil {
		return s.principal, true
	}
	if s.subject == "" {
		return nil, false
	}
	return tokenPrincipal{loginID: s.subject}, true
}

// Attach binds the principal to the session and (re)issues the cookie
func (s *cookieSession) Attach(principal Principal) {
	s.principal = principal
	s.subject = principal.LoginID()
	s.transport.writeCookie(s.id, s.subject)
}

// Invalidate removes the cookie from the response
func (s *cookieSession) Invalidate() {
	s.principal = nil
	s.transport.deleteCookie()
	s.transport.current = nil
}

// tokenPrincipal is the owner identity reconstructed from a session token
// subject. It carries no authorities, it exists for session bookkeeping
// and diagnostics only.
type tokenPrincipal struct {
	loginID string
}

var _ Principal = tokenPrincipal{}

func (p tokenPrincipal) ID() string            { return "" }
func (p tokenPrincipal) LoginID() string       { return p.loginID }
func (p tokenPrincipal) Role() string          { return "" }
func (p tokenPrincipal) Authorities() []string { return nil }
func (p tokenPrincipal) FirstLogin() bool      { return false }
