package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	auth "github.com/kellybase/go-session-auth"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// cookieMockContext routes Cookies through the testify mock so tests can
// stub the value with On("Cookies", ...) and count the reads; the embedded
// router.MockContext serves Cookies from its CookiesM map and never records
// the call.
type cookieMockContext struct {
	*router.MockContext
}

func newCookieMockContext() *cookieMockContext {
	return &cookieMockContext{MockContext: router.NewMockContext()}
}

func (m *cookieMockContext) Cookies(name string, defaultValue ...string) string {
	args := m.MockContext.Mock.Called(name)
	return args.String(0)
}

// MockCredentialVerifier implements auth.CredentialVerifier
type MockCredentialVerifier struct {
	mock.Mock
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, loginID, password string) (auth.Principal, error) {
	args := m.Called(ctx, loginID, password)
	principal, _ := args.Get(0).(auth.Principal)
	return principal, args.Error(1)
}

// MockAuthenticator implements auth.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, transport auth.SessionTransport, loginID, password string, isForce bool) (auth.LoginResult, error) {
	args := m.Called(ctx, transport, loginID, password, isForce)
	result, _ := args.Get(0).(auth.LoginResult)
	return result, args.Error(1)
}

func (m *MockAuthenticator) Logout(ctx context.Context, transport auth.SessionTransport) error {
	args := m.Called(ctx, transport)
	return args.Error(0)
}

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSessionCookieName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSessionDuration() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetLockoutThreshold() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetLockoutDuration() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

// MockAccounts implements auth.Accounts for the methods the login flow
// touches. The embedded repository interface covers the rest of the
// method set; calling an unstubbed method panics, which is what we want
// in a test.
type MockAccounts struct {
	mock.Mock
	repository.Repository[*auth.Account]
}

func (m *MockAccounts) GetByLoginID(ctx context.Context, loginID string) (*auth.Account, error) {
	args := m.Called(ctx, loginID)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) GetByLoginIDTx(ctx context.Context, tx bun.IDB, loginID string) (*auth.Account, error) {
	args := m.Called(ctx, tx, loginID)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) Save(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	saved, _ := args.Get(0).(*auth.Account)
	return saved, args.Error(1)
}

func (m *MockAccounts) SaveTx(ctx context.Context, tx bun.IDB, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, tx, account)
	saved, _ := args.Get(0).(*auth.Account)
	return saved, args.Error(1)
}

func (m *MockAccounts) Provision(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	saved, _ := args.Get(0).(*auth.Account)
	return saved, args.Error(1)
}

func (m *MockAccounts) ProvisionTx(ctx context.Context, tx bun.IDB, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, tx, account)
	saved, _ := args.Get(0).(*auth.Account)
	return saved, args.Error(1)
}

func (m *MockAccounts) ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockRepositoryManager implements auth.RepositoryManager. RunInTx runs
// the closure directly so transactional code paths are exercised without
// a database.
type MockRepositoryManager struct {
	accounts *MockAccounts
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{accounts: &MockAccounts{}}
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() auth.Accounts {
	return m.accounts
}

// MockAccountsOf is a convenience accessor for expectation setup
func (m *MockRepositoryManager) MockAccounts() *MockAccounts {
	return m.accounts
}

// testPrincipal is a simple implementation of the Principal interface
type testPrincipal struct {
	id          string
	loginID     string
	role        string
	authorities []string
	firstLogin  bool
}

func (p testPrincipal) ID() string            { return p.id }
func (p testPrincipal) LoginID() string       { return p.loginID }
func (p testPrincipal) Role() string          { return p.role }
func (p testPrincipal) Authorities() []string { return p.authorities }
func (p testPrincipal) FirstLogin() bool      { return p.firstLogin }

// fakeSession is an in-memory TransportSession
type fakeSession struct {
	id          string
	principal   auth.Principal
	invalidated bool
	transport   *fakeTransport
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Principal() (auth.Principal, bool) {
	if s.principal == nil {
		return nil, false
	}
	return s.principal, true
}

func (s *fakeSession) Attach(principal auth.Principal) {
	s.principal = principal
}

func (s *fakeSession) Invalidate() {
	s.invalidated = true
	if s.transport != nil && s.transport.current == s {
		s.transport.current = nil
	}
}

// fakeTransport is an in-memory SessionTransport
type fakeTransport struct {
	current *fakeSession
	nextID  string
	created int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (t *fakeTransport) withSession(id string, principal auth.Principal) *fakeTransport {
	t.current = &fakeSession{id: id, principal: principal, transport: t}
	return t
}

func (t *fakeTransport) Current() (auth.TransportSession, bool) {
	if t.current == nil {
		return nil, false
	}
	return t.current, true
}

func (t *fakeTransport) GetOrCreate() auth.TransportSession {
	if t.current != nil {
		return t.current
	}

	id := t.nextID
	if id == "" {
		id = uuid.NewString()
	}

	t.created++
	t.current = &fakeSession{id: id, transport: t}
	return t.current
}

// captureLogger records formatted log lines for assertions
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) record(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.record(format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.record(format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.record(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.record(format, args...) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// recordingSink captures activity events for assertions
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) EventTypes() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}
