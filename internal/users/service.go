// Package users turns validated session claims into the acting user.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarvelMathesh/trackflow/internal/auth"
	"github.com/MarvelMathesh/trackflow/internal/crm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultProvider = "default"

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service records provider identities and resolves the canonical actor.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolveActor returns the actor for claims, creating the identity mapping on
// first sight. A "provider:subject" user id is split so the same person keeps
// one canonical id across providers' prefixes.
func (s *Service) ResolveActor(ctx context.Context, claims auth.SessionClaims) (crm.Actor, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return crm.Actor{}, ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if actor, ok := cached.(crm.Actor); ok {
			return withClaims(actor, claims), nil
		}
	}

	now := s.now().UTC()
	var identity Identity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		Take(&identity).
		Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			LastSeenAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
			return crm.Actor{}, fmt.Errorf("%w: %v", crm.ErrStoreUnavailable, err)
		}
	case err != nil:
		return crm.Actor{}, fmt.Errorf("%w: %v", crm.ErrStoreUnavailable, err)
	default:
		updates := map[string]any{"last_seen_at": now, "updated_at": now}
		if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
			identity.Email = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
			identity.DisplayName = display
		}
		if err := s.db.WithContext(ctx).Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).
			Error; err != nil {
			s.logger.Warn("identity refresh failed",
				zap.String("provider", provider),
				zap.String("user_id", identity.UserID),
				zap.Error(err))
		}
	}

	actor := crm.Actor{ID: identity.UserID, Name: identity.DisplayName, Email: identity.Email}
	s.cache.Store(cacheKey, actor)
	return actor, nil
}

// withClaims prefers the names carried by the current token over cached ones.
func withClaims(actor crm.Actor, claims auth.SessionClaims) crm.Actor {
	if name := normalize(claims.UserDisplayName); name != "" {
		actor.Name = name
	}
	if email := normalize(claims.UserEmail); email != "" {
		actor.Email = email
	}
	return actor
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if prefix, rest, found := strings.Cut(raw, ":"); found && normalize(prefix) != "" && normalize(rest) != "" {
			provider = normalize(prefix)
			subject = normalize(rest)
		} else if !found {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}
	return provider, subject
}
