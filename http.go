package auth

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// HTTPAuth binds the coordinator, the cookie transport, and the session
// registry to the routing layer
type HTTPAuth struct {
	coordinator  Authenticator
	registry     SessionRegistry
	repo         RepositoryManager
	resolver     AuthorityResolver
	cfg          Config
	tokens       *SessionTokenService
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewHTTPAuth wires the HTTP surface. The token service signs the session
// cookie with the configured key.
func NewHTTPAuth(coordinator Authenticator, registry SessionRegistry, repo RepositoryManager, cfg Config) *HTTPAuth {
	a := &HTTPAuth{
		coordinator: coordinator,
		registry:    registry,
		repo:        repo,
		resolver:    StaticAuthorityResolver{},
		cfg:         cfg,
		tokens:      NewSessionTokenService([]byte(cfg.GetSigningKey()), cfg.GetSessionDuration(), cfg.GetIssuer(), nil),
		Logger:      defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

func (a *HTTPAuth) WithLogger(logger Logger) *HTTPAuth {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithAuthorityResolver overrides how granted authorities are rebuilt for
// authenticated requests
func (a *HTTPAuth) WithAuthorityResolver(resolver AuthorityResolver) *HTTPAuth {
	if resolver != nil {
		a.resolver = resolver
	}
	return a
}

// Transport returns the cookie backed session transport for the request
func (a *HTTPAuth) Transport(c router.Context) *CookieTransport {
	return NewCookieTransport(c, a.tokens, a.cfg).WithLogger(a.Logger)
}

// Login runs the coordinator against the request transport and attaches
// the authenticated principal to the request context
func (a *HTTPAuth) Login(c router.Context, payload LoginPayload) (LoginResult, error) {
	result, err := a.coordinator.Login(
		c.Context(),
		a.Transport(c),
		payload.GetLoginID(),
		payload.GetPassword(),
		payload.GetForce(),
	)
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return LoginResult{}, err
	}

	c.SetContext(WithPrincipalContext(c.Context(), result.Principal))
	return result, nil
}

// Logout invalidates the session and detaches the principal from the
// request context. Always succeeds.
func (a *HTTPAuth) Logout(c router.Context) {
	_ = a.coordinator.Logout(c.Context(), a.Transport(c))
	c.SetContext(ClearPrincipalContext(c.Context()))
}

// Authenticated returns middleware that resolves the session cookie back
// into a full principal before the handler runs. Requests without a live
// registry entry are rejected with AUTH_REQUIRED, which is also how a
// session evicted by a forced login surfaces.
func (a *HTTPAuth) Authenticated() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, err := a.resolveRequestPrincipal(c)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			c.SetContext(WithPrincipalContext(c.Context(), principal))
			return hf(c)
		}
	}
}

func (a *HTTPAuth) resolveRequestPrincipal(c router.Context) (Principal, error) {
	transport := a.Transport(c)

	sess, ok := transport.Current()
	if !ok {
		return nil, ErrAuthRequired
	}

	info := a.registry.GetSessionInfo(sess.ID())
	if info == nil || info.Expired() {
		return nil, ErrAuthRequired
	}

	owner, ok := sess.Principal()
	if !ok {
		return nil, ErrAuthRequired
	}

	account, err := a.repo.Accounts().GetByLoginID(c.Context(), owner.LoginID())
	if err != nil {
		a.Logger.Error("failed to load account for session: %v", err)
		return nil, ErrAuthRequired
	}

	if !account.IsActive() {
		return nil, ErrAuthRequired
	}

	authorities, err := a.resolver.GrantedAuthorities(c.Context(), account)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve granted authorities")
	}

	info.Refresh()

	return NewAccountPrincipal(account, authorities), nil
}

func (a *HTTPAuth) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info("auth error %s [%s]: %s", richErr.Message, richErr.TextCode, print.MaybePrettyJSON(richErr.Metadata))

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"code":    richErr.TextCode,
		"message": richErr.Message,
	})
}
