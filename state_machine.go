package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_ACCOUNT_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from a deleted account.
var ErrTerminalState = goerrors.New("account state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*AccountStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *AccountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *AccountStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *AccountStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reason = reason
	}
}

// WithTransitionActor records who triggered the transition.
func WithTransitionActor(actor ActorRef) TransitionOption {
	return func(opts *transitionOptions) {
		opts.actor = actor
	}
}

// WithLockExpiry overrides the lockout expiry applied when entering the
// locked state.
func WithLockExpiry(t time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.lockExpiry = &t
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

type transitionOptions struct {
	actor      ActorRef
	reason     string
	lockExpiry *time.Time
	force      bool
}

// AccountStateMachine validates and applies account lifecycle changes.
// It mutates the account in place; callers persist the row, usually
// inside the same transaction that loaded it.
type AccountStateMachine struct {
	transitions  map[AccountStatus]map[AccountStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

// NewAccountStateMachine returns the default lifecycle graph.
func NewAccountStateMachine(opts ...StateMachineOption) *AccountStateMachine {
	sm := &AccountStateMachine{
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			AccountStatusActive: {
				AccountStatusLocked:   {},
				AccountStatusDisabled: {},
				AccountStatusDeleted:  {},
			},
			AccountStatusLocked: {
				AccountStatusActive:   {},
				AccountStatusDisabled: {},
				AccountStatusDeleted:  {},
			},
			AccountStatusDisabled: {
				AccountStatusActive:  {},
				AccountStatusDeleted: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// Transition moves the account into the target status, enforcing the
// lifecycle graph. Transitioning to the current status is a no-op.
func (sm *AccountStateMachine) Transition(ctx context.Context, account *Account, target AccountStatus, opts ...TransitionOption) error {
	if account == nil {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "account is nil",
		})
	}

	account.EnsureStatus()
	from := account.Status

	if !ValidAccountStatus(target) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if from == target {
		return nil
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if from == AccountStatusDeleted && !options.force {
		return ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !options.force && !sm.canTransition(from, target) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	sm.apply(account, target, options)
	sm.recordActivity(ctx, account, from, target, options)

	return nil
}

// CurrentStatus reports the effective status of an account.
func (sm *AccountStateMachine) CurrentStatus(account *Account) AccountStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}

func (sm *AccountStateMachine) canTransition(from, to AccountStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *AccountStateMachine) apply(account *Account, target AccountStatus, opts *transitionOptions) {
	switch target {
	case AccountStatusActive:
		account.Unlock()
	case AccountStatusLocked:
		expiry := sm.now().Add(DefaultLockoutDuration)
		if opts.lockExpiry != nil {
			expiry = *opts.lockExpiry
		}
		account.Lock(expiry)
	default:
		account.Status = target
	}
}

func (sm *AccountStateMachine) recordActivity(ctx context.Context, account *Account, from, to AccountStatus, opts *transitionOptions) {
	eventType := ActivityEventAccountLocked
	switch to {
	case AccountStatusActive:
		eventType = ActivityEventAccountUnlocked
	case AccountStatusLocked:
		eventType = ActivityEventAccountLocked
	default:
		eventType = ActivityEventAccountStatusChanged
	}

	actor := opts.actor
	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "system"}
	}

	metadata := map[string]any{
		"from": from,
		"to":   to,
	}
	if opts.reason != "" {
		metadata["reason"] = opts.reason
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		AccountID:  account.ID.String(),
		Metadata:   metadata,
		OccurredAt: sm.now(),
	}); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}
