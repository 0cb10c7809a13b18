package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
)

// LoginRequest is the JSON payload for the login endpoint
type LoginRequest struct {
	LoginID  string `json:"login_id" form:"login_id"`
	Password string `json:"password" form:"password"`
	IsForce  bool   `json:"is_force" form:"is_force"`
}

var _ LoginPayload = (*LoginRequest)(nil)

func (r LoginRequest) GetLoginID() string {
	return r.LoginID
}

func (r LoginRequest) GetPassword() string {
	return r.Password
}

func (r LoginRequest) GetForce() bool {
	return r.IsForce
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LoginID, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// HTTPController exposes login and logout as JSON endpoints
type HTTPController struct {
	auth   *HTTPAuth
	logger Logger
}

func NewHTTPController(auth *HTTPAuth) *HTTPController {
	return &HTTPController{
		auth:   auth,
		logger: auth.Logger,
	}
}

func (c *HTTPController) WithLogger(logger Logger) *HTTPController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterAuthRoutes mounts the login and logout endpoints
func RegisterAuthRoutes[T any](app router.Router[T], controller *HTTPController) {
	app.Post("/login", controller.LoginPost)
	app.Post("/logout", controller.LogoutPost)
}

// LoginPost authenticates the request credentials and starts a session
func (c *HTTPController) LoginPost(ctx router.Context) error {
	payload := LoginRequest{}

	if err := ctx.Bind(&payload); err != nil {
		c.logger.Error("login payload bind error: %v", err)
		return c.auth.ErrorHandler(ctx, ErrBadCredential)
	}

	if err := payload.Validate(); err != nil {
		c.logger.Debug("login payload validation error: %v", err)
		return c.auth.ErrorHandler(ctx, ErrBadCredential)
	}

	result, err := c.auth.Login(ctx, payload)
	if err != nil {
		return c.auth.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"outcome":  string(result.Outcome),
		"login_id": result.Principal.LoginID(),
		"role":     result.Principal.Role(),
	})
}

// LogoutPost terminates the current session. Safe to call without one.
func (c *HTTPController) LogoutPost(ctx router.Context) error {
	c.auth.Logout(ctx)

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}
