package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"learnhub/api/internal/config"
	"learnhub/api/internal/ids"
	"learnhub/api/internal/models"
)

// Claims is the payload embedded in both token classes.
type Claims struct {
	PrincipalID string `json:"uid"`
	Email       string `json:"email"`
	RoleID      int    `json:"rid"`
	RoleName    string `json:"role"`
	jwt.RegisteredClaims
}

// Pair is one access token and one refresh token minted together.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

var ErrInvalidToken = errors.New("invalid token")

// Codec signs and verifies token pairs. It is stateless: verification is a
// local signature and expiry check, never a database or network call.
// Access and refresh tokens use distinct secrets so neither key can be used
// to mint tokens of the other class.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(cfg config.SecurityConfig) *Codec {
	return &Codec{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.JWTAccessTTL,
		refreshTTL:    cfg.JWTRefreshTTL,
	}
}

// Issue mints a fresh pair for the principal. Both tokens carry the same
// identity claims; only the secret and expiry differ.
func (c *Codec) Issue(p models.Principal) (Pair, error) {
	access, err := c.sign(p, c.accessSecret, c.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := c.sign(p, c.refreshSecret, c.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *Codec) sign(p models.Principal, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		PrincipalID: p.ID,
		Email:       p.Email,
		RoleID:      p.Role.ID(),
		RoleName:    string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   p.ID,
			ID:        ids.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(secret)
}

// VerifyAccess checks signature and expiry against the access secret. Any
// failure (bad signature, expired, malformed) yields ErrInvalidToken; it
// never panics and never returns partial claims.
func (c *Codec) VerifyAccess(tokenStr string) (*Claims, error) {
	return verify(tokenStr, c.accessSecret)
}

// VerifyRefresh is VerifyAccess against the refresh secret.
func (c *Codec) VerifyRefresh(tokenStr string) (*Claims, error) {
	return verify(tokenStr, c.refreshSecret)
}

func verify(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeUnsafe extracts claims without checking the signature. Diagnostics
// only; never an input to an authorization decision.
func DecodeUnsafe(tokenStr string) *Claims {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, &Claims{})
	if err != nil {
		return nil
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
