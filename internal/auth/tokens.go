package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/metrics"
	"github.com/aldoetobex/legal-aid-backend/internal/sessions"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub   string `json:"sub"`             // user ID
	Role  string `json:"role"`            // "citizen" | "lawyer" | "admin"
	Staff bool   `json:"staff,omitempty"` // admin rights without the admin role
	jwt.RegisteredClaims
}

var (
	// ErrInvalidToken covers bad signatures, expiry and malformed claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevoked is returned for a token that was logged out.
	ErrRevoked = errors.New("token revoked")
	// ErrInactive is returned when the token's account was deactivated or banned.
	ErrInactive = errors.New("account inactive")
)

// Tokens issues and checks access tokens. Revocation state lives in a sessions.Store.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	store  sessions.Store
	now    func() time.Time
	// active reports whether the account may still use its tokens; nil skips the check.
	active func(ctx context.Context, userID uuid.UUID) (bool, error)
}

// NewTokens builds a token service. A nil store disables revocation.
func NewTokens(secret string, ttl time.Duration, store sessions.Store) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

// WithAccountCheck makes RequireAuth reject tokens of accounts whose is_active
// flag was cleared after the token was issued.
func (t *Tokens) WithAccountCheck(db *gorm.DB) *Tokens {
	t.active = func(ctx context.Context, userID uuid.UUID) (bool, error) {
		var u models.User
		err := db.WithContext(ctx).Select("is_active").First(&u, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return u.IsActive, err
	}
	return t
}

// checkActive runs the account check, if configured.
func (t *Tokens) checkActive(ctx context.Context, claims *Claims) error {
	if t.active == nil {
		return nil
	}
	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return ErrInvalidToken
	}
	ok, err := t.active(ctx, id)
	if err != nil {
		return fmt.Errorf("account check: %w", err)
	}
	if !ok {
		return ErrInactive
	}
	return nil
}

// Issue signs a token for the given user. Each token carries a unique jti so it
// can be revoked on logout.
func (t *Tokens) Issue(u models.User) (string, error) {
	now := t.now()
	claims := &Claims{
		Sub:   u.ID.String(),
		Role:  string(u.Role),
		Staff: u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates signature, expiry and revocation.
func (t *Tokens) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tk *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if t.store != nil && claims.ID != "" {
		start := time.Now()
		revoked, err := t.store.IsRevoked(ctx, claims.ID)
		metrics.ObserveSince(metrics.RevocationCheckDurationMs, start)
		if err != nil {
			return nil, fmt.Errorf("revocation check: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke blocks the token until it would have expired anyway.
func (t *Tokens) Revoke(ctx context.Context, claims *Claims) error {
	if t.store == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return t.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(t.now()))
}
