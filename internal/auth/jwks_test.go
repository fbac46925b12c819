package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key"

func ecJWKS(t *testing.T, key *ecdsa.PrivateKey) json.RawMessage {
	t.Helper()
	pad := func(b []byte) string {
		out := make([]byte, 32)
		copy(out[32-len(b):], b)
		return base64.RawURLEncoding.EncodeToString(out)
	}
	return json.RawMessage(fmt.Sprintf(
		`{"keys":[{"kty":"EC","crv":"P-256","kid":%q,"alg":"ES256","use":"sig","x":%q,"y":%q}]}`,
		testKID, pad(key.X.Bytes()), pad(key.Y.Bytes()),
	))
}

func signES256(t *testing.T, key *ecdsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = testKID
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWKSVerifier(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	v, err := newJWKSVerifierFromJSON(ecJWKS(t, key), slog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	good := signES256(t, key, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	id, err := v.ValidateToken(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, userID, id)

	expired := signES256(t, key, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	_, err = v.ValidateToken(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	forged := signES256(t, other, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err = v.ValidateToken(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWKSVerifier_RejectsHMAC(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	v, err := newJWKSVerifierFromJSON(ecJWKS(t, key), slog.Default())
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tok.Header["kid"] = testKID
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.ValidateToken(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWKSVerifier_EmptyURL(t *testing.T) {
	_, err := NewJWKSVerifier(context.Background(), "", slog.Default())
	assert.Error(t, err)
}

func TestChainVerifier(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	jwks, err := newJWKSVerifierFromJSON(ecJWKS(t, key), slog.Default())
	require.NoError(t, err)
	chain := ChainVerifier{svc, jwks}
	ctx := context.Background()

	local, err := svc.issueToken(uuid.New())
	require.NoError(t, err)
	_, err = chain.ValidateToken(ctx, local)
	assert.NoError(t, err)

	external := signES256(t, key, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err = chain.ValidateToken(ctx, external)
	assert.NoError(t, err)

	_, err = chain.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ChainVerifier{}.ValidateToken(ctx, local)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
