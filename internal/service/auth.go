package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"learnhub/api/internal/ids"
	"learnhub/api/internal/models"
	"learnhub/api/internal/repository"
	"learnhub/api/internal/security"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so responses never reveal which half was wrong.
	ErrInvalidCredentials = errors.New("email or password incorrect")
	ErrPrincipalInactive  = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

// TokenRevoker records refresh tokens invalidated before their expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthService struct {
	store   repository.HierarchyStore
	codec   *security.Codec
	revoker TokenRevoker
	log     zerolog.Logger
}

func NewAuthService(store repository.HierarchyStore, codec *security.Codec, revoker TokenRevoker, log zerolog.Logger) *AuthService {
	return &AuthService{
		store:   store,
		codec:   codec,
		revoker: revoker,
		log:     log,
	}
}

type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	Principal models.Principal
	Tokens    security.Pair
}

// Signup registers a self-service account. Self-registered principals are
// always students with no creator.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrPrincipalNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	principal := models.Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Role:         models.RoleStudent,
		Status:       models.StatusActive,
	}

	if err := s.store.CreatePrincipal(ctx, principal); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, err
	}

	pair, err := s.codec.Issue(principal)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("principal_id", principal.ID).Msg("principal registered")
	return AuthResult{Principal: principal, Tokens: pair}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	principal, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(password, principal.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	// Checked after the password so timing does not distinguish a
	// suspended account from a bad credential.
	if principal.Status != models.StatusActive {
		return AuthResult{}, ErrPrincipalInactive
	}

	pair, err := s.codec.Issue(principal)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{Principal: principal, Tokens: pair}, nil
}

// Refresh mints a new pair from a valid refresh token. The refresh token
// must verify against the refresh secret, must not be revoked, and its
// principal must still exist and be active.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (security.Pair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return security.Pair{}, ErrInvalidRefresh
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return security.Pair{}, err
	}
	if revoked {
		return security.Pair{}, ErrInvalidRefresh
	}

	principal, err := s.store.GetByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return security.Pair{}, ErrInvalidRefresh
		}
		return security.Pair{}, err
	}
	if principal.Status != models.StatusActive {
		return security.Pair{}, ErrPrincipalInactive
	}

	return s.codec.Issue(principal)
}

// Logout revokes the presented refresh token until its natural expiry.
// An unverifiable token is already useless, so that case is a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		s.log.Warn().Err(err).Msg("refresh token revocation failed")
		return err
	}
	return nil
}

func (s *AuthService) Profile(ctx context.Context, principalID string) (models.Principal, error) {
	return s.store.GetByID(ctx, principalID)
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
