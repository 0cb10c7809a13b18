package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type UnlockAccountMessage struct {
	LoginID string `json:"login_id"`
	Actor   string `json:"actor"`
}

func (e UnlockAccountMessage) Type() string { return "account.unlock" }

// UnlockAccountHandler clears a lockout ahead of its expiry. Used by
// operators when a user cannot wait out the lockout window.
type UnlockAccountHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
}

func NewUnlockAccountHandler(repo RepositoryManager) *UnlockAccountHandler {
	return &UnlockAccountHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
}

func (h *UnlockAccountHandler) WithActivitySink(sink ActivitySink) *UnlockAccountHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *UnlockAccountHandler) WithLogger(logger Logger) *UnlockAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UnlockAccountHandler) Execute(ctx context.Context, event UnlockAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account unlock",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UnlockAccountHandler) execute(ctx context.Context, event UnlockAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByLoginIDTx(ctx, tx, event.LoginID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found")
		}

		machine := NewAccountStateMachine()
		if err := machine.Transition(ctx, account, AccountStatusActive); err != nil {
			return err
		}

		_, err = h.repo.Accounts().SaveTx(ctx, tx, account)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account unlock transaction failed")
	}

	if err := h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventAccountUnlocked,
		Actor:      ActorRef{ID: event.Actor, Type: "operator"},
		AccountID:  account.ID.String(),
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}

	return nil
}
