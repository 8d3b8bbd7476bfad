package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	relay_errors "chatrelay/pkg/errors"
)

// Verifier validates bearer credentials issued by the identity service.
// Every failure mode collapses into ErrUnauthorized; callers must not be
// able to distinguish a malformed token from an expired or revoked one.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type accessClaims struct {
	jwt.RegisteredClaims
}

// Verify returns the stable user id carried by the credential.
func (v *Verifier) Verify(credential string) (uuid.UUID, error) {
	if credential == "" {
		return uuid.Nil, relay_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(credential, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, relay_errors.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, relay_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, relay_errors.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, relay_errors.ErrUnauthorized
	}
	return userID, nil
}
