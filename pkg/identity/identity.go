// Package identity verifies and issues the signed credentials that tie a
// connection or request to a user. Both the HTTP routes and the websocket
// accept path go through the same Verify contract, so credential failures
// are handled uniformly everywhere.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredential means no token was presented at all.
	ErrNoCredential = errors.New("no credential")
	// ErrInvalidCredential means a token was presented but failed
	// signature, structure, or expiry checks.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Identity is the immutable (id, display name) pair carried by a verified
// credential. The zero value is anonymous.
type Identity struct {
	UserID   string
	Username string
}

// IsAnonymous reports whether the identity carries no verified user.
func (id Identity) IsAnonymous() bool {
	return id.UserID == ""
}

// Claims is the JWT payload. Field names match the original wire format so
// existing clients keep working.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier validates and issues HS256-signed tokens.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Verify decodes a credential into an Identity. It has no side effects;
// callers decide whether a failure is fatal (HTTP routes) or tolerated
// (websocket accept).
func (v *Verifier) Verify(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrNoCredential
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return Identity{}, ErrInvalidCredential
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// Issue signs a credential for the given identity.
func (v *Verifier) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			Issuer:    "chatverse",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
