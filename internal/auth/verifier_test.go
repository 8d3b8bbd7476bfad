package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relay_errors "chatrelay/pkg/errors"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testSecret)
	userID := uuid.New()

	t.Run("valid token returns the subject", func(t *testing.T) {
		token := signedToken(t, testSecret, userID.String(), time.Now().Add(time.Hour))
		got, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("every failure mode is the same error", func(t *testing.T) {
		cases := map[string]string{
			"empty credential": "",
			"garbage":          "not-a-jwt",
			"wrong secret":     signedToken(t, "other-secret", userID.String(), time.Now().Add(time.Hour)),
			"expired":          signedToken(t, testSecret, userID.String(), time.Now().Add(-time.Hour)),
			"bad subject":      signedToken(t, testSecret, "not-a-uuid", time.Now().Add(time.Hour)),
		}

		for name, credential := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := v.Verify(credential)
				assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)
			})
		}
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: userID.String()})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Verify(signed)
		assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)
	})
}
