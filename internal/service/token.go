package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/model"
)

// TokenService issues, verifies and rotates the signed access/refresh pair.
// Access and refresh tokens are HS256 JWTs signed with distinct secrets;
// the refresh token is persisted verbatim on the user row, so at most one
// refresh lineage is live per account.
type TokenService struct {
	store         UserStore
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

type accessClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

func NewTokenService(store UserStore, cfg config.AuthConfig) (*TokenService, error) {
	if cfg.AccessTokenSecret == "" {
		return nil, fmt.Errorf("%w: ACCESS_TOKEN_SECRET is required", ErrMisconfigured)
	}
	if cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("%w: REFRESH_TOKEN_SECRET is required", ErrMisconfigured)
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrMisconfigured)
	}

	accessTTL, err := time.ParseDuration(cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ACCESS_TOKEN_TTL", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid REFRESH_TOKEN_TTL", ErrMisconfigured)
	}

	return &TokenService{
		store:         store,
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) IssueAccessToken(user *model.User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *TokenService) IssueRefreshToken(user *model.User) (string, error) {
	now := time.Now()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps consecutive tokens for the same user distinct even
			// within one second; the rotation comparison depends on that.
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// IssueAndPersistPair mints both tokens and writes the refresh token onto
// the user row. The write is column-scoped, so no account field validation
// can re-run. A persistence failure is a server fault, not a client error.
func (s *TokenService) IssueAndPersistPair(ctx context.Context, user *model.User) (*model.TokenPair, error) {
	accessToken, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuance, err)
	}

	refreshToken, err := s.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuance, err)
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuance, err)
	}

	return &model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccessToken checks signature and expiry against the access secret
// and returns the account id carried in the token.
func (s *TokenService) VerifyAccessToken(tokenStr string) (string, error) {
	claims := &accessClaims{}
	if err := s.verify(tokenStr, s.accessSecret, claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *TokenService) VerifyRefreshToken(tokenStr string) (string, error) {
	claims := &refreshClaims{}
	if err := s.verify(tokenStr, s.refreshSecret, claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *TokenService) verify(tokenStr string, secret []byte, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: token expired", ErrUnauthorized)
		}
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return nil
}

// Rotate exchanges a valid refresh token for a fresh pair. The incoming
// token must match the stored one byte for byte; a superseded token is
// rejected, which makes replay of an already-rotated token impossible.
func (s *TokenService) Rotate(ctx context.Context, incoming string) (*model.TokenPair, *model.User, error) {
	userID, err := s.VerifyRefreshToken(incoming)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
		}
		return nil, nil, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != incoming {
		return nil, nil, fmt.Errorf("%w: refresh token is expired or already used", ErrUnauthorized)
	}

	pair, err := s.IssueAndPersistPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}
