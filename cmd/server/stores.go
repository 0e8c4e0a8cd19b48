package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/internal/config"
	"github.com/fastygo/tasktracker/internal/infrastructure/monitor"
	mongoInfra "github.com/fastygo/tasktracker/internal/infrastructure/mongo"
	pgInfra "github.com/fastygo/tasktracker/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/tasktracker/internal/infrastructure/redis"
	"github.com/fastygo/tasktracker/internal/services/lifecycle"
	"github.com/fastygo/tasktracker/repository"
	"github.com/fastygo/tasktracker/repository/memory"
	mongoRepo "github.com/fastygo/tasktracker/repository/mongo"
	"github.com/fastygo/tasktracker/repository/postgres"
	redisRepo "github.com/fastygo/tasktracker/repository/redis"
)

// stores is the set of repositories the usecases run on, plus the probes the monitor uses.
type stores struct {
	tasks    repository.TaskRepository
	users    repository.UserRepository
	sessions repository.SessionRepository
	stats    repository.StatsCache
	checks   monitor.Checks
}

// openStores connects the engine selected by STORE_DRIVER and registers
// every connection with the lifecycle manager.
func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (*stores, error) {
	var s stores

	switch cfg.Store.Driver {
	case config.DriverMemory:
		s.tasks = memory.NewTaskRepository()
		s.users = memory.NewUserRepository()
		s.sessions = memory.NewSessionRepository(cfg.JWT.TTL)
		s.stats = memory.NewStatsCache(cfg.Query.StatsCacheTTL)
		logger.Warn("running on the in-memory store; data is lost on restart")
		return &s, nil

	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, cfg.AppName, logger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
		s.tasks = postgres.NewTaskRepository(pool)
		s.users = postgres.NewUserRepository(pool)
		s.checks.Store = pool.Ping

	case config.DriverMongo:
		client, db, err := mongoInfra.Connect(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		manager.Register("mongo", func(ctx context.Context) error {
			return mongoInfra.Disconnect(ctx, client, logger)
		})
		if err := mongoRepo.EnsureIndexes(ctx, db); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		s.tasks = mongoRepo.NewTaskRepository(db)
		s.users = mongoRepo.NewUserRepository(db)
		s.checks.Store = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis, cfg.AppName, logger)
	if err != nil {
		return nil, err
	}
	manager.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})
	s.sessions = redisRepo.NewSessionRepository(redisClient, cfg.JWT.TTL)
	s.stats = redisRepo.NewStatsCache(redisClient, cfg.Query.StatsCacheTTL)
	s.checks.Cache = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	return &s, nil
}
