package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal holds the attributes of an authenticated identity
type Principal interface {
	ID() string
	LoginID() string
	Role() string
	Authorities() []string
	FirstLogin() bool
}

// LoginOutcome is the caller visible result of a successful login
type LoginOutcome string

const (
	// OutcomeSuccess is a fully completed login
	OutcomeSuccess LoginOutcome = "SUCCESS"
	// OutcomeNeedChangePassword means credentials were accepted but the
	// account still carries its provisioned password
	OutcomeNeedChangePassword LoginOutcome = "NEED_CHANGE_PASSWORD"
)

// LoginResult bundles the outcome with the authenticated principal
type LoginResult struct {
	Outcome   LoginOutcome
	Principal Principal
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, transport SessionTransport, loginID, password string, isForce bool) (LoginResult, error)
	Logout(ctx context.Context, transport SessionTransport) error
}

// CredentialVerifier validates credentials against the account store and
// returns an authenticated principal or a typed failure
type CredentialVerifier interface {
	Verify(ctx context.Context, loginID, password string) (Principal, error)
}

// AuthorityResolver maps an account onto its granted authority strings.
// How authorities relate to role rows in a store is a collaborator concern.
type AuthorityResolver interface {
	GrantedAuthorities(ctx context.Context, account *Account) ([]string, error)
}

// TransportSession is the network layer session attached to a request,
// distinct from the logical registry bookkeeping entry
type TransportSession interface {
	ID() string
	// Principal returns the identity attached to the session, if any.
	// A garbled or missing session attribute reports ok=false.
	Principal() (Principal, bool)
	Attach(principal Principal)
	Invalidate()
}

// SessionTransport creates and resolves transport sessions for the
// current request
type SessionTransport interface {
	// Current returns the transport session carried by the request, if any
	Current() (TransportSession, bool)
	// GetOrCreate returns the current session, issuing a new one if the
	// request carries none
	GetOrCreate() TransportSession
}

// LoginPayload carries the caller supplied login fields
type LoginPayload interface {
	GetLoginID() string
	GetPassword() string
	GetForce() bool
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetSessionCookieName() string
	GetSessionDuration() time.Duration
	GetLockoutThreshold() int
	GetLockoutDuration() time.Duration
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
