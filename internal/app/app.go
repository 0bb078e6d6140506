// Package app assembles storage, the broadcast bus and the services from configuration.
// Both the API server and chatctl build on it.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/api/http/handlers"
	"github.com/spec-kit/staffchat/internal/broadcast"
	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/observability"
	"github.com/spec-kit/staffchat/internal/persistence"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/internal/repository/memory"
	"github.com/spec-kit/staffchat/internal/service"
	"github.com/spec-kit/staffchat/internal/worker"
)

// App holds the wired dependency graph.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Registry   *prometheus.Registry
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Store      *repository.Store
	Bus        broadcast.Bus
	Dispatcher events.Dispatcher

	EmployeeIDs   *service.EmployeeIDService
	Identity      *service.IdentityService
	Auth          *service.AuthService
	Rooms         *service.RoomService
	Messages      *service.MessageService
	Reactions     *service.ReactionService
	Presence      *service.PresenceService
	Search        *service.SearchService
	Preferences   *service.PreferenceService
	Notifications *service.NotificationService
	AutoJoin      *service.AutoJoinReactor
	Maintenance   *service.MaintenanceService
}

// New connects storage and builds every service. An empty POSTGRES_DSN selects the
// in-memory store; the redis bus backend requires a reachable server.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = observability.NewMetrics(a.Registry)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Postgres = pg
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				a.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		a.Store = repository.NewPostgresStore(pg.PoolHandle(), cfg.Postgres.LockTimeout())
	} else {
		logger.Warn("POSTGRES_DSN not set; using in-memory store")
		a.Store = memory.New().Repositories()
	}

	var observer broadcast.Observer
	if a.Metrics != nil {
		observer = a.Metrics
	}
	local := broadcast.NewLocalBus(cfg.Chat.SubscriberBuffer, observer)
	a.Bus = local
	if cfg.Chat.BroadcastBackend == config.BroadcastRedis {
		a.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		bus, err := broadcast.NewRedisBus(ctx, a.Redis.Client, local, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("start redis bus: %w", err)
		}
		a.Bus = bus
	}

	a.Dispatcher = events.NewInMemoryDispatcher(logger)
	a.EmployeeIDs = service.NewEmployeeIDService(a.Store.Users, cfg.Identity, a.Metrics, logger)
	reactor := service.NewRoleChangeReactor(a.EmployeeIDs, cfg.Identity.OnDemotion, logger)
	a.Identity = service.NewIdentityService(a.Store.Users, reactor, a.Dispatcher, logger)
	a.Auth = service.NewAuthService(cfg.Auth, a.Store.Users, a.Identity)
	a.Rooms = service.NewRoomService(a.Store, logger)
	a.Messages = service.NewMessageService(a.Store, a.Bus, a.Dispatcher, a.Metrics, logger)
	a.Reactions = service.NewReactionService(a.Store, a.Bus, logger)
	a.Presence = service.NewPresenceService(a.Store, a.Bus, logger)
	a.Search = service.NewSearchService(a.Store)
	a.Preferences = service.NewPreferenceService(a.Store.Preferences)
	a.Notifications = service.NewNotificationService(a.Dispatcher, a.Store, logger, cfg.Notification)
	a.AutoJoin = service.NewAutoJoinReactor(a.Store.Rooms, cfg.Chat, logger)
	a.Maintenance = service.NewMaintenanceService(a.Store, a.Identity, a.Messages, a.Presence, logger)

	worker.StartNotificationWorker(a.Notifications)
	worker.StartAutoJoinWorker(a.AutoJoin, a.Dispatcher)
	return a, nil
}

// ReadinessChecks lists the backing services for the readiness probe. Unconfigured ones
// carry a nil Ping.
func (a *App) ReadinessChecks() []handlers.DependencyCheck {
	checks := []handlers.DependencyCheck{{Name: "postgres"}, {Name: "redis"}}
	if a.Postgres.Enabled() {
		checks[0].Ping = a.Postgres.Ping
	}
	if a.Redis != nil {
		checks[1].Ping = a.Redis.Ping
	}
	return checks
}

// Close releases the bus and connections. Safe on a partially built App.
func (a *App) Close() {
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Logger.Warn("closing broadcast bus", zap.Error(err))
		}
	}
	a.Redis.Close()
	a.Postgres.Close()
}
