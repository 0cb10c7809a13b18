package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SessionClaims is the signed payload carried by the session cookie. The
// cookie only transports the session id and owner, the authoritative
// session state lives in the SessionRegistry.
type SessionClaims struct {
	jwt.RegisteredClaims
	SID string `json:"sid"`
}

// SessionTokenService signs and validates the transport session cookie
// value so session ids cannot be forged client side
type SessionTokenService struct {
	signingKey []byte
	duration   time.Duration
	issuer     string
	logger     Logger
}

// NewSessionTokenService creates a new SessionTokenService instance
func NewSessionTokenService(signingKey []byte, duration time.Duration, issuer string, logger Logger) *SessionTokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &SessionTokenService{
		signingKey: signingKey,
		duration:   duration,
		issuer:     issuer,
		logger:     logger,
	}
}

// Mint signs a token binding the session id to its owning login id
func (ts *SessionTokenService) Mint(sessionID, subject string) (string, error) {
	if sessionID == "" {
		return "", goerrors.New("session id must not be empty", goerrors.CategoryInternal)
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.duration)),
		},
		SID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses and verifies a cookie value, returning its claims
func (ts *SessionTokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session token has unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SID == "" {
		ts.logger.Error("session token could not be decoded or validated")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
