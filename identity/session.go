// Package identity supplies the current user from the session token.
// The core only reads this; credential issuance and storage live outside.
package identity

import (
	"fmt"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the data carried inside the session JWT.
type SessionClaims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Session is the current user's stable identity for the lifetime of a sync
// session.
type Session struct {
	Token string
	User  domain.Participant
}

// ParseSession validates the session token and extracts the user identity.
// Any validation failure maps to ErrAuth: the caller must re-authenticate,
// retrying cannot help.
func ParseSession(token string, key []byte) (Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return Session{}, fmt.Errorf("%w: token carries no user identity", errors.ErrAuth)
	}

	return Session{
		Token: token,
		User: domain.Participant{
			ID:   domain.UserID(claims.UserID),
			Name: claims.DisplayName,
		},
	}, nil
}

// IssueToken signs a session token. Mainly used by tests and local tooling;
// production tokens come from the auth collaborator.
func IssueToken(user domain.Participant, key []byte, lifetime time.Duration) (string, error) {
	claims := &SessionClaims{
		UserID:      string(user.ID),
		DisplayName: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-sync",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
