package auth

import (
	"time"
)

// DefaultLockoutThreshold is the number of consecutive failures that locks
// an account
var DefaultLockoutThreshold = 6

// DefaultLockoutDuration is how long a lockout stays in effect
var DefaultLockoutDuration = 30 * time.Minute

// LockoutPolicy converts authentication outcomes into account state
// transitions. It is pure decision logic: the caller persists the record.
type LockoutPolicy struct {
	threshold int
	duration  time.Duration
	now       func() time.Time
	logger    Logger
}

// LockoutOption customizes the lockout policy
type LockoutOption func(*LockoutPolicy)

// WithLockoutClock injects a custom clock (useful for tests)
func WithLockoutClock(clock func() time.Time) LockoutOption {
	return func(p *LockoutPolicy) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithLockoutLogger overrides the policy logger
func WithLockoutLogger(logger Logger) LockoutOption {
	return func(p *LockoutPolicy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewLockoutPolicy builds a policy from configuration. Non-positive
// threshold or duration fall back to the package defaults.
func NewLockoutPolicy(threshold int, duration time.Duration, opts ...LockoutOption) *LockoutPolicy {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}

	p := &LockoutPolicy{
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// RecordFailure applies one failed authentication to the account. Crossing
// the threshold locks the account and resets the counter; the return value
// reports whether that transition happened on this call.
func (p *LockoutPolicy) RecordFailure(account *Account) bool {
	failCount := account.FailCount + 1
	if failCount >= p.threshold {
		expiresAt := p.now().Add(p.duration)
		p.logger.Warn("account will be locked: lockout expires at %s", expiresAt.Format(time.RFC3339))
		account.Lock(expiresAt)
		return true
	}

	p.logger.Debug("increase fail count: %d", failCount)
	account.FailCount = failCount
	return false
}

// RecordSuccess applies a successful authentication. The fail counter
// always resets. First-login accounts must change their password before the
// login counts, so their last-login timestamp is left untouched.
func (p *LockoutPolicy) RecordSuccess(account *Account) LoginOutcome {
	account.ResetFailCount()

	if account.IsFirstLogin {
		return OutcomeNeedChangePassword
	}

	account.RecordLoginTimestamp(p.now())
	return OutcomeSuccess
}

// TryAutoUnlock reactivates a locked account whose lockout window has
// passed. A locked account with no expiry on record is treated as already
// expired rather than permanently locked. Returns true when the account
// state changed.
func (p *LockoutPolicy) TryAutoUnlock(account *Account) bool {
	if account.Status != AccountStatusLocked {
		return false
	}

	if !lockoutExpired(account.LockoutExpiresAt, p.now()) {
		return false
	}

	p.logger.Info("account has been unlocked: %s", account.LoginID)
	account.Unlock()
	return true
}

func lockoutExpired(expiresAt *time.Time, now time.Time) bool {
	// a LOCKED row with no expiry should never exist, treat it as expired
	return expiresAt == nil || !expiresAt.After(now)
}
