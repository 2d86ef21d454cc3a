package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/repclub/guard"
	"github.com/repclub/guard/permission"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrTokenInvalid covers any token that fails signature or claim
	// validation. Callers treat it as an authentication failure; the
	// wrapped cause is for logs only.
	ErrTokenInvalid = errors.New("identity: token invalid")
)

// Config configures a Manager. PrivateKey doubles as the HMAC secret when
// SigningMethod is hs256.
type Config struct {
	SessionTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Manager issues and verifies session tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	config Config
}

// sessionClaims is the wire form of a Principal.
type sessionClaims struct {
	OrganizationID string   `json:"org"`
	LocationID     string   `json:"loc,omitempty"`
	Role           string   `json:"role"`
	RoleLevel      int      `json:"level"`
	Permissions    []string `json:"perms,omitempty"`
	MFAVerified    bool     `json:"mfa,omitempty"`
	MFARequired    bool     `json:"mfa_req,omitempty"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("identity: session TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("identity: leeway out of range")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("identity: hs256 requires a secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("identity: ed25519 requires a public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("identity: unsupported signing method")
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a token for the principal. Permission membership, role and
// MFA flags travel inside the token; expiry comes from the configured
// SessionTTL, not from the principal.
func (m *Manager) Issue(p guard.Principal) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("identity: principal has no user id")
	}
	if strings.TrimSpace(p.OrganizationID) == "" {
		return "", errors.New("identity: principal has no organization id")
	}

	now := time.Now()
	claims := sessionClaims{
		OrganizationID: p.OrganizationID,
		LocationID:     p.LocationID,
		Role:           p.Role,
		RoleLevel:      p.RoleLevel,
		MFAVerified:    p.MFAVerified,
		MFARequired:    p.MFARequired,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	for perm := range p.Permissions {
		claims.Permissions = append(claims.Permissions, perm.Raw())
	}

	token := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

// Parse verifies a token and reconstructs the principal it carries.
// SessionValidUntil is the token expiry, so the engine's session layer
// re-checks it on every access without another token parse. Malformed
// permission strings inside the token are dropped, never guessed at.
func (m *Manager) Parse(tokenStr string) (guard.Principal, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		return guard.Principal{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return guard.Principal{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return guard.Principal{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return guard.Principal{
		UserID:            claims.Subject,
		OrganizationID:    claims.OrganizationID,
		LocationID:        claims.LocationID,
		Role:              claims.Role,
		RoleLevel:         claims.RoleLevel,
		Permissions:       permission.NewSet(claims.Permissions...),
		MFAVerified:       claims.MFAVerified,
		MFARequired:       claims.MFARequired,
		SessionValidUntil: claims.ExpiresAt.Time,
	}, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("identity: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("identity: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("identity: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("identity: invalid ed25519 public key type")
	}
	return edKey, nil
}
