package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Coordinator orchestrates credential verification, the lockout policy,
// and session arbitration into the caller visible login/logout operations.
type Coordinator struct {
	verifier     CredentialVerifier
	repo         RepositoryManager
	policy       *LockoutPolicy
	arbiter      *SessionArbiter
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Coordinator)(nil)

// NewCoordinator returns a new authentication Coordinator
func NewCoordinator(verifier CredentialVerifier, repo RepositoryManager, policy *LockoutPolicy, arbiter *SessionArbiter) *Coordinator {
	return &Coordinator{
		verifier:     verifier,
		repo:         repo,
		policy:       policy,
		arbiter:      arbiter,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Coordinator) WithLogger(logger Logger) *Coordinator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Coordinator) WithActivitySink(sink ActivitySink) *Coordinator {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Login authenticates the credentials and dispatches the session. A
// credential success does not guarantee a login success: arbitration can
// still reject the attempt when a competing session exists.
func (s *Coordinator) Login(ctx context.Context, transport SessionTransport, loginID, password string, isForce bool) (LoginResult, error) {
	normalized := NormalizeLoginID(loginID)
	s.logger.Debug("login attempt for account: %s", normalized)

	// id of the transport session the request arrived with, taken before
	// verification so a mid-flight rotation is detected by the arbiter
	prevSessionID := CurrentSessionID(transport)

	principal, err := s.verifier.Verify(ctx, normalized, password)
	if err != nil {
		return LoginResult{}, s.handleFailedLogin(ctx, normalized, err)
	}

	// arbitration runs before the success bookkeeping is written: a
	// login rejected with ALREADY_LOGIN must leave the fail counter and
	// lastLoginAt untouched
	if err := s.arbiter.CheckDuplicateSession(ctx, principal, prevSessionID, isForce); err != nil {
		s.logger.Error("login denied by session arbitration: %s", normalized)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromPrincipal(principal), principal.ID(), map[string]any{
			"login_id": normalized,
			"error":    err.Error(),
		})
		return LoginResult{}, err
	}

	outcome, err := s.handleSuccessfulLogin(ctx, normalized)
	if err != nil {
		return LoginResult{}, err
	}

	s.arbiter.BindSession(principal, transport, prevSessionID)

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromPrincipal(principal), principal.ID(), map[string]any{
		"login_id": normalized,
		"outcome":  string(outcome),
	})

	return LoginResult{Outcome: outcome, Principal: principal}, nil
}

// Logout invalidates the current transport session. It is idempotent: a
// request with no session logs and succeeds.
func (s *Coordinator) Logout(ctx context.Context, transport SessionTransport) error {
	s.arbiter.InvalidateSession(ctx, transport)
	return nil
}

func (s *Coordinator) handleFailedLogin(ctx context.Context, loginID string, verifyErr error) error {
	switch {
	case IsBadCredentialError(verifyErr):
		// the failure is recorded before the caller hears about it, a
		// lockout triggered by this very attempt still reports the
		// attempt itself as a bad credential
		s.recordFailure(ctx, loginID)
		s.logger.Error("invalid credentials: %s", loginID)
	case IsAccountLockedError(verifyErr):
		s.logger.Error("account locked: %s", loginID)
	case HasTextCode(verifyErr, textCodeAccountDisabled):
		s.logger.Error("account disabled: %s", loginID)
	default:
		s.logger.Error("login verify error: %v", verifyErr)
	}

	s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
		"login_id": loginID,
		"error":    verifyErr.Error(),
	})

	return verifyErr
}

func (s *Coordinator) recordFailure(ctx context.Context, loginID string) {
	var lockedNow bool
	var accountID string

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().GetByLoginIDTx(ctx, tx, loginID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// unknown login id has no counter to bump
				return nil
			}
			return err
		}

		lockedNow = s.policy.RecordFailure(account)
		accountID = account.ID.String()

		_, err = s.repo.Accounts().SaveTx(ctx, tx, account)
		return err
	})

	if err != nil {
		s.logger.Error("failed to record login failure for [%s]: %v", loginID, err)
		return
	}

	if lockedNow {
		s.emitAuthEvent(ctx, ActivityEventAccountLocked, ActorRef{Type: "system"}, accountID, map[string]any{
			"login_id": loginID,
		})
	}
}

func (s *Coordinator) handleSuccessfulLogin(ctx context.Context, loginID string) (LoginOutcome, error) {
	var outcome LoginOutcome

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().GetByLoginIDTx(ctx, tx, loginID)
		if err != nil {
			return err
		}

		outcome = s.policy.RecordSuccess(account)

		_, err = s.repo.Accounts().SaveTx(ctx, tx, account)
		return err
	})

	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record successful login")
	}

	s.logger.Info("login outcome: %s, loginId: %s", outcome, loginID)
	return outcome, nil
}

func (s *Coordinator) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Coordinator) actorFromPrincipal(principal Principal) ActorRef {
	if principal == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: principal.ID(), Type: "user"}
}
