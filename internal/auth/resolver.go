// Package auth resolves a request's session credential into a caller identity.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved caller of a request. It is passed explicitly into
// every content operation; core logic never reads ambient session state.
type Identity struct {
	UserID      string
	DisplayName string
}

// ErrUnauthenticated is returned when a credential is missing, malformed,
// expired, or fails signature verification.
var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver verifies session credentials. Resolution is a pure function of the
// credential, so concurrent use is safe.
type Resolver interface {
	Resolve(credential string) (Identity, error)
}

// JWTResolver verifies HMAC-signed JWTs issued by the identity provider.
// The user identifier comes from the standard "sub" claim and the display
// name from "name", falling back to "Anonymous" the way the upstream
// provider's tokens do when no profile name is set.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver returns a Resolver verifying tokens with the given shared secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve parses and verifies the credential and extracts the caller identity.
func (r *JWTResolver) Resolve(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrUnauthenticated
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, ErrUnauthenticated
	}

	name, _ := claims["name"].(string)
	if name == "" {
		name = "Anonymous"
	}

	return Identity{UserID: sub, DisplayName: name}, nil
}
