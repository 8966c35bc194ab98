package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"superpos/backend/internal/cache"
	"superpos/backend/internal/cart"
	"superpos/backend/internal/domain"
	"superpos/backend/internal/store"
)

var (
	ErrUnauthenticated = errors.New("authenticated operator required")
	ErrForbidden       = errors.New("forbidden role")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Settings struct {
	Cart           cart.Options
	ReportCacheTTL time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Cart:           cart.DefaultOptions(),
		ReportCacheTTL: 30 * time.Second,
	}
}

type Service struct {
	repo     store.Repository
	reports  cache.ReportCache
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
	sessions *sessionRegistry
}

func New(repo store.Repository, reports cache.ReportCache, settings Settings, logger *zap.Logger) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.ReportCacheTTL <= 0 {
		settings.ReportCacheTTL = 30 * time.Second
	}
	if settings.Cart.Logger == nil {
		settings.Cart.Logger = logger.Named("cart")
	}

	return &Service{
		repo:     repo,
		reports:  reports,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		sessions: newSessionRegistry(),
	}
}

// requireRole returns the actor from ctx when it holds one of roles. An empty
// roles list accepts any authenticated actor.
func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, ErrUnauthenticated
	}
	if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

// audit records a state change with the acting operator.
func (s *Service) audit(ctx context.Context, action string, entityType string, entityID string, fields ...zap.Field) {
	actor, _ := ActorFromContext(ctx)
	base := []zap.Field{
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.String("actor_id", actor.UserID),
		zap.String("actor_role", actor.Role),
	}
	s.logger.Info("audit", append(base, fields...)...)
}
