package auth_test

import (
	"context"
	"testing"

	auth "github.com/kellybase/go-session-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermissions(t *testing.T) {
	granted := []string{"account:read", "account:write"}

	t.Run("AND requires every permission", func(t *testing.T) {
		assert.True(t, auth.HasPermissions(granted, []string{"account:read"}, auth.PermOperatorAND))
		assert.True(t, auth.HasPermissions(granted, []string{"account:read", "account:write"}, auth.PermOperatorAND))
		assert.False(t, auth.HasPermissions(granted, []string{"account:read", "account:delete"}, auth.PermOperatorAND))
	})

	t.Run("OR requires at least one", func(t *testing.T) {
		assert.True(t, auth.HasPermissions(granted, []string{"account:delete", "account:read"}, auth.PermOperatorOR))
		assert.False(t, auth.HasPermissions(granted, []string{"account:delete", "account:admin"}, auth.PermOperatorOR))
	})

	t.Run("empty required set passes vacuously", func(t *testing.T) {
		assert.True(t, auth.HasPermissions(granted, nil, auth.PermOperatorAND))
		assert.True(t, auth.HasPermissions(granted, nil, auth.PermOperatorOR))
		assert.True(t, auth.HasPermissions(nil, nil, auth.PermOperatorAND))
		assert.True(t, auth.HasPermissions(nil, nil, auth.PermOperatorOR))
	})

	t.Run("empty granted set fails non-empty requirements", func(t *testing.T) {
		assert.False(t, auth.HasPermissions(nil, []string{"account:read"}, auth.PermOperatorAND))
		assert.False(t, auth.HasPermissions(nil, []string{"account:read"}, auth.PermOperatorOR))
	})
}

func TestGuardCheckWithoutPrincipal(t *testing.T) {
	guard := auth.NewPermissionGuard()

	err := guard.Check(context.Background(), auth.PermOperatorAND, "account:read")

	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, "AUTH_REQUIRED"))
}

func TestGuardCheckDenied(t *testing.T) {
	guard := auth.NewPermissionGuard()

	principal := testPrincipal{loginID: "kelly", authorities: []string{"account:read"}}
	ctx := auth.WithPrincipalContext(context.Background(), principal)

	err := guard.Check(ctx, auth.PermOperatorAND, "account:read", "account:write")

	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, "NO_PERMISSION"))
}

func TestGuardCheckAllowed(t *testing.T) {
	guard := auth.NewPermissionGuard()

	principal := testPrincipal{loginID: "kelly", authorities: []string{"account:read", "account:write"}}
	ctx := auth.WithPrincipalContext(context.Background(), principal)

	assert.NoError(t, guard.Check(ctx, auth.PermOperatorAND, "account:read", "account:write"))
	assert.NoError(t, guard.Check(ctx, auth.PermOperatorOR, "account:delete", "account:read"))
	assert.NoError(t, guard.Check(ctx, auth.PermOperatorAND))
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	principal := testPrincipal{loginID: "kelly", authorities: []string{"account:read"}}

	ctx := auth.WithPrincipalContext(context.Background(), principal)

	got, ok := auth.PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "kelly", got.LoginID())

	cleared := auth.ClearPrincipalContext(ctx)
	_, ok = auth.PrincipalFromContext(cleared)
	assert.False(t, ok)
}

func TestPrincipalFromContextEmpty(t *testing.T) {
	_, ok := auth.PrincipalFromContext(context.Background())
	assert.False(t, ok)
}

func TestHasAuthority(t *testing.T) {
	principal := testPrincipal{loginID: "kelly", authorities: []string{"account:read"}}
	ctx := auth.WithPrincipalContext(context.Background(), principal)

	assert.True(t, auth.HasAuthority(ctx, "account:read"))
	assert.False(t, auth.HasAuthority(ctx, "account:write"))
	assert.False(t, auth.HasAuthority(context.Background(), "account:read"))
}
