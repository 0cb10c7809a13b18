package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type ProvisionAccountMessage struct {
	LoginID   string `json:"login_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	UseHashid bool
}

func (e ProvisionAccountMessage) Type() string { return "account.provision" }

// ProvisionAccountHandler creates an account in ACTIVE state. Accounts
// provisioned without a password get a random unusable hash and must go
// through the first login password change.
type ProvisionAccountHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
}

func NewProvisionAccountHandler(repo RepositoryManager) *ProvisionAccountHandler {
	return &ProvisionAccountHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
}

func (h *ProvisionAccountHandler) WithActivitySink(sink ActivitySink) *ProvisionAccountHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *ProvisionAccountHandler) WithLogger(logger Logger) *ProvisionAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ProvisionAccountHandler) Execute(ctx context.Context, event ProvisionAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionAccountHandler) execute(ctx context.Context, event ProvisionAccountMessage) error {
	if NormalizeLoginID(event.LoginID) == "" {
		return goerrors.New("login id is required", goerrors.CategoryValidation)
	}

	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account.LoginID = event.LoginID
		account.Name = event.Name
		account.Role = event.Role

		if event.Password != "" {
			hash, err := HashPassword(event.Password)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			account.PasswordHash = hash
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(NormalizeLoginID(event.LoginID)); err == nil {
				account.ID = id
			}
		}

		var err error
		if account, err = h.repo.Accounts().ProvisionTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not provision account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account provisioning transaction failed")
	}

	if err := h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventAccountProvisioned,
		Actor:      ActorRef{Type: "operator"},
		AccountID:  account.ID.String(),
		OccurredAt: time.Now(),
		Metadata:   map[string]any{"login_id": account.LoginID},
	}); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}

	return nil
}
