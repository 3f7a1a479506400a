package token

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"bookstore/pkg/domain"
)

const (
	defaultIssuer   = "bookstore-api"
	defaultAudience = "bookstore-web"
	defaultTTL      = 7 * 24 * time.Hour
	defaultLeeway   = 30 * time.Second
)

var (
	// ErrInvalidToken covers every verification failure: bad signature,
	// expiry, wrong issuer/audience, malformed payload. Verification fails
	// closed and never yields a partial identity.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the verified identity carried by a session token.
type Claims struct {
	UserID string
	Role   domain.UserRole
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Options configures token issuance and validation.
type Options struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// Manager issues and verifies HS256 session tokens binding user id and role.
// There is no revocation list; expiry is the only invalidation mechanism.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
}

// NewManager creates a token manager from a shared signing secret.
func NewManager(secret string, opts Options) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token signing secret is required")
	}
	opts = normalizeOptions(opts)
	return &Manager{
		secret:   []byte(secret),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		leeway:   opts.Leeway,
	}, nil
}

// Issue signs a time-limited token for the user id and role.
func (m *Manager) Issue(userID string, role domain.UserRole) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("token subject is required")
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning the bound identity.
func (m *Manager) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}
	claims := sessionClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Claims{}, ErrInvalidToken
	}
	role := domain.UserRole(strings.TrimSpace(claims.Role))
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: subject, Role: role}, nil
}

func normalizeOptions(opts Options) Options {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultAudience
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultLeeway
	}
	return opts
}
