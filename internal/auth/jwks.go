package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWKSVerifier validates tokens issued by an external identity provider.
// The token subject must be the user's id.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
}

// NewJWKSVerifier fetches public keys from jwksURL. keyfunc refreshes them
// in the background until ctx is cancelled.
func NewJWKSVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

func newJWKSVerifierFromJSON(raw json.RawMessage, logger *slog.Logger) (*JWKSVerifier, error) {
	jwks, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, err
	}
	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

func (v *JWKSVerifier) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	var c jwt.RegisteredClaims
	// Asymmetric algorithms only.
	tok, err := jwt.ParseWithClaims(token, &c, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}), jwt.WithExpirationRequired())
	if err != nil {
		v.logger.Debug("token parse failed", "error", err)
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	return subjectID(c.Subject)
}

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

func (c ChainVerifier) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	err := ErrInvalidToken
	for _, v := range c {
		id, verr := v.ValidateToken(ctx, token)
		if verr == nil {
			return id, nil
		}
		err = verr
	}
	return uuid.Nil, err
}
