package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// NormalizeLoginID lower-cases and trims a login id before lookup and
// comparison
func NormalizeLoginID(loginID string) string {
	return strings.ToLower(strings.TrimSpace(loginID))
}

// AccountVerifier is the default CredentialVerifier backed by the accounts
// repository and bcrypt credential hashes
type AccountVerifier struct {
	repo     RepositoryManager
	policy   *LockoutPolicy
	resolver AuthorityResolver
	logger   Logger
}

var _ CredentialVerifier = (*AccountVerifier)(nil)

// NewAccountVerifier builds a verifier over the repository manager. The
// lockout policy releases expired locks before credentials are checked.
func NewAccountVerifier(repo RepositoryManager, policy *LockoutPolicy) *AccountVerifier {
	return &AccountVerifier{
		repo:     repo,
		policy:   policy,
		resolver: StaticAuthorityResolver{},
		logger:   defLogger{},
	}
}

func (v *AccountVerifier) WithLogger(logger Logger) *AccountVerifier {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// WithAuthorityResolver overrides how granted authorities are resolved
func (v *AccountVerifier) WithAuthorityResolver(resolver AuthorityResolver) *AccountVerifier {
	if resolver != nil {
		v.resolver = resolver
	}
	return v
}

// Verify looks the account up by its normalized login id, releases an
// expired lockout, checks the account status, and compares the password.
// An unknown login id is reported as a bad credential so callers cannot
// probe for account existence.
func (v *AccountVerifier) Verify(ctx context.Context, loginID, password string) (Principal, error) {
	normalized := NormalizeLoginID(loginID)
	v.logger.Debug("loading account by loginId(lowercase): %s", normalized)

	account, err := v.repo.Accounts().GetByLoginID(ctx, normalized)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			v.logger.Error("account not found: %s", normalized)
			return nil, ErrBadCredential
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	account.EnsureStatus()

	// an expired lock must release before the credential check so a now
	// valid login is not rejected
	if v.policy.TryAutoUnlock(account) {
		if _, err := v.repo.Accounts().Save(ctx, account); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist auto-unlock")
		}
	}

	switch account.Status {
	case AccountStatusLocked:
		return nil, ErrAccountLocked
	case AccountStatusDisabled, AccountStatusDeleted:
		return nil, ErrAccountDisabled
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, ErrBadCredential
	}

	authorities, err := v.resolver.GrantedAuthorities(ctx, account)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve granted authorities")
	}

	return NewAccountPrincipal(account, authorities), nil
}

// StaticAuthorityResolver grants authorities from an in memory role map.
// The account's own role code is always part of the granted set, the way
// role rows expand into authorities in the backing store.
type StaticAuthorityResolver struct {
	Grants map[string][]string
}

var _ AuthorityResolver = StaticAuthorityResolver{}

func (r StaticAuthorityResolver) GrantedAuthorities(_ context.Context, account *Account) ([]string, error) {
	authorities := []string{account.Role}
	authorities = append(authorities, r.Grants[account.Role]...)
	return authorities, nil
}

type accountPrincipal struct {
	id          string
	loginID     string
	role        string
	authorities []string
	firstLogin  bool
}

var _ Principal = accountPrincipal{}

// NewAccountPrincipal adapts an account and its resolved authorities into
// a Principal
func NewAccountPrincipal(account *Account, authorities []string) Principal {
	return accountPrincipal{
		id:          account.ID.String(),
		loginID:     account.LoginID,
		role:        account.Role,
		authorities: authorities,
		firstLogin:  account.IsFirstLogin,
	}
}

func (p accountPrincipal) ID() string            { return p.id }
func (p accountPrincipal) LoginID() string       { return p.loginID }
func (p accountPrincipal) Role() string          { return p.role }
func (p accountPrincipal) Authorities() []string { return p.authorities }
func (p accountPrincipal) FirstLogin() bool      { return p.firstLogin }
