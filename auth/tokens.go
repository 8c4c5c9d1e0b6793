package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrSigning      = errors.New("token signing failed")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the signed payload: sub, exp, iat, jti, the token kind, the
// caller's role and the account's token version at issue time.
type Claims struct {
	TokenType string `json:"token_type"`
	Role      string `json:"role,omitempty"`
	Version   int    `json:"ver"`
	jwt.RegisteredClaims
}

// Identity is what a token asserts about its holder.
type Identity struct {
	Subject string
	Role    string
	Version int
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, c.Subject)
	}
	return uint(id), nil
}

// ExpiresAtTime returns the expiry as a time, zero when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Subject renders a user id in the canonical subject form.
func Subject(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

// TokenManager issues and validates access/refresh tokens. Access and
// refresh tokens are signed with separate keys.
type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

type Option func(*TokenManager)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

func NewTokenManager(cfg TokenConfig, opts ...Option) *TokenManager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 15 * 24 * time.Hour
	}
	m := &TokenManager{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.cfg.AccessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

func (m *TokenManager) IssueAccess(subject string) (string, *Claims, error) {
	return m.Issue(TokenTypeAccess, subject, m.cfg.AccessTTL)
}

func (m *TokenManager) IssueRefresh(subject string) (string, *Claims, error) {
	return m.Issue(TokenTypeRefresh, subject, m.cfg.RefreshTTL)
}

// IssuePair issues a fresh access and refresh token for id.
func (m *TokenManager) IssuePair(id Identity) (TokenPair, error) {
	access, _, err := m.IssueFor(TokenTypeAccess, id, m.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := m.IssueFor(TokenTypeRefresh, id, m.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.cfg.AccessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Issue signs a token of the given kind for a bare subject.
func (m *TokenManager) Issue(tokenType, subject string, ttl time.Duration) (string, *Claims, error) {
	return m.IssueFor(tokenType, Identity{Subject: subject}, ttl)
}

// IssueFor signs a token of the given kind valid for ttl. The expiry is
// rounded up to the next whole second so a token is never shorter-lived
// than ttl.
func (m *TokenManager) IssueFor(tokenType string, id Identity, ttl time.Duration) (string, *Claims, error) {
	subject := id.Subject
	key, err := m.keyFor(tokenType)
	if err != nil {
		return "", nil, err
	}
	if len(key) == 0 {
		return "", nil, fmt.Errorf("%w: no %s signing key configured", ErrSigning, tokenType)
	}
	if subject == "" {
		return "", nil, fmt.Errorf("%w: empty subject", ErrSigning)
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("%w: non-positive lifetime %s", ErrSigning, ttl)
	}

	now := m.now()
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); t.Before(exp) {
		exp = t.Add(time.Second)
	}
	claims := &Claims{
		TokenType: tokenType,
		Role:      id.Role,
		Version:   id.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, claims, nil
}

func (m *TokenManager) ValidateAccess(token string) (*Claims, error) {
	return m.validate(token, TokenTypeAccess, m.cfg.AccessSecret)
}

func (m *TokenManager) ValidateRefresh(token string) (*Claims, error) {
	return m.validate(token, TokenTypeRefresh, m.cfg.RefreshSecret)
}

func (m *TokenManager) validate(token, want string, key []byte) (*Claims, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: no %s verification key configured", ErrInvalidToken, want)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.cfg.Leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, want, claims.TokenType)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (m *TokenManager) keyFor(tokenType string) ([]byte, error) {
	switch tokenType {
	case TokenTypeAccess:
		return m.cfg.AccessSecret, nil
	case TokenTypeRefresh:
		return m.cfg.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", ErrSigning, tokenType)
	}
}
