package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionTTL = 12 * time.Hour

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubjectClaim  = errors.New("user id must be provided")
)

// SessionIssuerConfig configures SessionIssuer.
type SessionIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TTL           time.Duration
	Clock         func() time.Time
}

// SessionIdentity describes the user a session token is minted for.
type SessionIdentity struct {
	UserID      string
	Email       string
	DisplayName string
	Roles       []string
}

// SessionIssuer signs session tokens accepted by SessionValidator. It backs
// the issue-session command used for local development and tests.
type SessionIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// Issue returns a signed token for identity and its expiry time.
func (i *SessionIssuer) Issue(identity SessionIdentity) (string, time.Time, error) {
	userID := strings.TrimSpace(identity.UserID)
	if userID == "" {
		return "", time.Time{}, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl)
	claims := SessionClaims{
		UserID:          userID,
		UserEmail:       strings.TrimSpace(identity.Email),
		UserDisplayName: strings.TrimSpace(identity.DisplayName),
		UserRoles:       identity.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
