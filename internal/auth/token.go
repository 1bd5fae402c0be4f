package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moiport/entity"
	"moiport/internal/lib/sl"
)

// ErrUnauthorized is returned for every verification failure. Callers fail
// closed: REST responds 401, the websocket gateway closes the connection.
var ErrUnauthorized = errors.New("unauthorized")

type Repository interface {
	GetUserByID(id string) (*entity.User, error)
}

type claims struct {
	TenantID   string `json:"tid"`
	Role       string `json:"role"`
	CustomerID string `json:"cid,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies the bearer tokens carried by REST requests
// and websocket handshakes.
type TokenService struct {
	secret     []byte
	ttl        time.Duration
	repository Repository
	log        *slog.Logger
}

func NewTokenService(secret string, ttlHours int, repository Repository, log *slog.Logger) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		ttl:        time.Duration(ttlHours) * time.Hour,
		repository: repository,
		log:        log.With(sl.Module("auth")),
	}
}

// IssueToken signs a token for an existing user.
func (s *TokenService) IssueToken(user *entity.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TenantID:   user.TenantID,
		Role:       user.Role,
		CustomerID: user.CustomerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ResolveViewer verifies a bearer token and resolves the viewer behind it.
// Any verification error, a missing user row, an inactive user or a tenant
// mismatch yields ErrUnauthorized; role and customer scope are taken from the
// user row, not from the claims.
func (s *TokenService) ResolveViewer(tokenString string) (*entity.Viewer, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		s.log.Debug("token rejected", sl.Err(err))
		return nil, ErrUnauthorized
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" || c.TenantID == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.repository.GetUserByID(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolve viewer: %w", err)
	}
	if user == nil || !user.Active || user.TenantID != c.TenantID {
		return nil, ErrUnauthorized
	}

	return &entity.Viewer{
		TenantID:   user.TenantID,
		UserID:     user.ID,
		Role:       user.Role,
		CustomerID: user.CustomerID,
	}, nil
}
