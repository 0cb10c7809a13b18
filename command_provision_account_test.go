package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	auth "github.com/kellybase/go-session-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProvisionAccountWithPassword(t *testing.T) {
	manager := NewMockRepositoryManager()
	sink := &recordingSink{}

	var provisioned *auth.Account
	manager.MockAccounts().On("ProvisionTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			provisioned = args.Get(2).(*auth.Account)
		}).
		Return(&auth.Account{}, nil)

	handler := auth.NewProvisionAccountHandler(manager).WithActivitySink(sink)

	err := handler.Execute(context.Background(), auth.ProvisionAccountMessage{
		LoginID:  "kelly",
		Name:     "Kelly",
		Role:     auth.RoleGeneralUser,
		Password: "secret-password",
	})
	require.NoError(t, err)

	require.NotNil(t, provisioned)
	assert.Equal(t, "kelly", provisioned.LoginID)
	assert.Equal(t, "Kelly", provisioned.Name)
	assert.Equal(t, auth.RoleGeneralUser, provisioned.Role)

	assert.NoError(t, auth.ComparePasswordAndHash("secret-password", provisioned.PasswordHash))
	assert.Contains(t, sink.EventTypes(), auth.ActivityEventAccountProvisioned)
}

func TestProvisionAccountRequiresLoginID(t *testing.T) {
	manager := NewMockRepositoryManager()
	handler := auth.NewProvisionAccountHandler(manager)

	err := handler.Execute(context.Background(), auth.ProvisionAccountMessage{
		LoginID: "   ",
	})
	require.Error(t, err)

	manager.MockAccounts().AssertNotCalled(t, "ProvisionTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionAccountWithHashid(t *testing.T) {
	manager := NewMockRepositoryManager()

	var provisioned *auth.Account
	manager.MockAccounts().On("ProvisionTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			provisioned = args.Get(2).(*auth.Account)
		}).
		Return(&auth.Account{}, nil)

	handler := auth.NewProvisionAccountHandler(manager)

	err := handler.Execute(context.Background(), auth.ProvisionAccountMessage{
		LoginID:   "Kelly",
		UseHashid: true,
	})
	require.NoError(t, err)

	expected, err := hashid.NewUUID("kelly")
	require.NoError(t, err)

	require.NotNil(t, provisioned)
	assert.Equal(t, expected, provisioned.ID)
}

func TestProvisionAccountCancelledContext(t *testing.T) {
	manager := NewMockRepositoryManager()
	handler := auth.NewProvisionAccountHandler(manager)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Execute(ctx, auth.ProvisionAccountMessage{LoginID: "kelly"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")

	manager.MockAccounts().AssertNotCalled(t, "ProvisionTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionAccountStoreConflict(t *testing.T) {
	manager := NewMockRepositoryManager()
	manager.MockAccounts().On("ProvisionTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("UNIQUE constraint failed: accounts.login_id"))

	handler := auth.NewProvisionAccountHandler(manager)

	err := handler.Execute(context.Background(), auth.ProvisionAccountMessage{LoginID: "kelly"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Contains(t, richErr.Message, "could not provision account")
}

func TestUnlockAccountClearsLockout(t *testing.T) {
	manager := NewMockRepositoryManager()
	sink := &recordingSink{}

	expiry := time.Now().Add(10 * time.Minute)
	account := &auth.Account{
		LoginID:          "kelly",
		Status:           auth.AccountStatusLocked,
		LockoutExpiresAt: &expiry,
	}

	manager.MockAccounts().On("GetByLoginIDTx", mock.Anything, mock.Anything, "kelly").Return(account, nil)

	var saved *auth.Account
	manager.MockAccounts().On("SaveTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(2).(*auth.Account)
		}).
		Return(account, nil)

	handler := auth.NewUnlockAccountHandler(manager).WithActivitySink(sink)

	err := handler.Execute(context.Background(), auth.UnlockAccountMessage{
		LoginID: "kelly",
		Actor:   "ops-1",
	})
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Equal(t, auth.AccountStatusActive, saved.Status)
	assert.Zero(t, saved.FailCount)
	assert.Nil(t, saved.LockoutExpiresAt)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventAccountUnlocked, events[0].EventType)
	assert.Equal(t, "ops-1", events[0].Actor.ID)
	assert.Equal(t, "operator", events[0].Actor.Type)
}

func TestUnlockAccountLogsSinkFailure(t *testing.T) {
	manager := NewMockRepositoryManager()
	logger := &captureLogger{}

	account := &auth.Account{LoginID: "kelly", Status: auth.AccountStatusLocked}
	manager.MockAccounts().On("GetByLoginIDTx", mock.Anything, mock.Anything, "kelly").Return(account, nil)
	manager.MockAccounts().On("SaveTx", mock.Anything, mock.Anything, mock.Anything).Return(account, nil)

	sink := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink unavailable")
	})

	handler := auth.NewUnlockAccountHandler(manager).
		WithActivitySink(sink).
		WithLogger(logger)

	// the unlock itself succeeds, the sink failure is only logged
	err := handler.Execute(context.Background(), auth.UnlockAccountMessage{LoginID: "kelly", Actor: "ops-1"})
	require.NoError(t, err)

	lines := logger.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "activity sink record error")
}

func TestUnlockAccountNotFound(t *testing.T) {
	manager := NewMockRepositoryManager()
	manager.MockAccounts().On("GetByLoginIDTx", mock.Anything, mock.Anything, "ghost").
		Return(nil, notFoundErr())

	handler := auth.NewUnlockAccountHandler(manager)

	err := handler.Execute(context.Background(), auth.UnlockAccountMessage{LoginID: "ghost"})
	require.Error(t, err)

	manager.MockAccounts().AssertNotCalled(t, "SaveTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnlockAccountDeletedIsTerminal(t *testing.T) {
	manager := NewMockRepositoryManager()
	account := &auth.Account{
		LoginID: "kelly",
		Status:  auth.AccountStatusDeleted,
	}
	manager.MockAccounts().On("GetByLoginIDTx", mock.Anything, mock.Anything, "kelly").Return(account, nil)

	handler := auth.NewUnlockAccountHandler(manager)

	err := handler.Execute(context.Background(), auth.UnlockAccountMessage{LoginID: "kelly"})
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, "TERMINAL_ACCOUNT_STATE"))

	manager.MockAccounts().AssertNotCalled(t, "SaveTx", mock.Anything, mock.Anything, mock.Anything)
}
