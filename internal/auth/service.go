package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/repository"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const DefaultTokenTTL = 24 * time.Hour

type Service interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// UserStore is the slice of repository.UserRepo that auth needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// CreditGranter credits the signup bonus.
type CreditGranter interface {
	Grant(ctx context.Context, userID uuid.UUID, amount int, entryType string) (int, error)
}

type TxRunner interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	Secret        []byte
	TokenTTL      time.Duration
	SignupCredits int
}

type service struct {
	users   UserStore
	credits CreditGranter
	tx      TxRunner
	cfg     Config
	now     func() time.Time
}

func NewService(users UserStore, credits CreditGranter, tx TxRunner, cfg Config) (*service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: JWT secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &service{users: users, credits: credits, tx: tx, cfg: cfg, now: time.Now}, nil
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

// Register creates the user and grants the signup bonus in one transaction.
func (s *service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
	}
	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("create user: %w", err)
		}
		if s.cfg.SignupCredits > 0 {
			balance, err := s.credits.Grant(ctx, u.ID, s.cfg.SignupCredits, models.CreditEntrySignupBonus)
			if err != nil {
				return fmt.Errorf("grant signup credits: %w", err)
			}
			u.Credits = balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(u.ID)
}

func (s *service) issueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.cfg.Secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	var c jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	return subjectID(c.Subject)
}

func subjectID(sub string) (uuid.UUID, error) {
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
