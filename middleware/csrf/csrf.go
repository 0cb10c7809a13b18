package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required")
)

// DefaultContextKey is the default key for storing CSRF tokens in context
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// DefaultExpiration bounds how long an issued token validates
const DefaultExpiration = 4 * time.Hour

const nonceLength = 16

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// ContextKey defines the key for storing the token in context
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header name for the token
	HeaderName string

	// SecureKey signs issued tokens. Required.
	SecureKey []byte

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	// Expiration defines how long tokens are valid
	Expiration time.Duration

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler
}

// New creates stateless CSRF middleware. Tokens are HMAC signed with the
// configured key and carry their own issue timestamp, so no server-side
// storage is involved. Safe methods get a fresh token in the context,
// unsafe methods must echo a valid one back in the header or form field.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			if len(cfg.SecureKey) == 0 {
				return cfg.ErrorHandler(ctx, ErrSecureKeyMissing)
			}

			token, err := generateToken(cfg.SecureKey)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return hf(ctx)
			}

			sent := extractToken(ctx, cfg)
			if sent == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if err := validateToken(sent, cfg.SecureKey, cfg.Expiration); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return hf(ctx)
		}
	}
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if len(cfg.SafeMethods) == 0 {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusForbidden, map[string]string{
		"error": err.Error(),
	})
}

func extractToken(ctx router.Context, cfg Config) string {
	if token := ctx.GetString(cfg.HeaderName, ""); token != "" {
		return token
	}
	return ctx.FormValue(cfg.FormFieldName)
}

// generateToken produces base64(nonce | issuedAt | hmac). The signature
// covers nonce and timestamp so a token cannot be replayed with a newer
// expiry.
func generateToken(key []byte) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	issuedAt := strconv.FormatInt(time.Now().Unix(), 10)
	sig := sign(key, nonce, issuedAt)

	payload := append([]byte{}, nonce...)
	payload = append(payload, '.')
	payload = append(payload, issuedAt...)
	payload = append(payload, '.')
	payload = append(payload, sig...)

	return base64.RawURLEncoding.EncodeToString(payload), nil
}

func validateToken(token string, key []byte, expiration time.Duration) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	if len(raw) < nonceLength+1 {
		return ErrTokenMismatch
	}

	nonce := raw[:nonceLength]
	rest := string(raw[nonceLength+1:])

	issuedAt, sig, found := strings.Cut(rest, ".")
	if !found {
		return ErrTokenMismatch
	}

	expected := sign(key, nonce, issuedAt)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return ErrTokenMismatch
	}

	seconds, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	if time.Since(time.Unix(seconds, 0)) > expiration {
		return ErrTokenExpired
	}

	return nil
}

func sign(key, nonce []byte, issuedAt string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	mac.Write([]byte(issuedAt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
