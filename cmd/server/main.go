package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/tasktracker/api/handler"
	"github.com/fastygo/tasktracker/internal/config"
	"github.com/fastygo/tasktracker/internal/infrastructure/buffer"
	"github.com/fastygo/tasktracker/internal/infrastructure/monitor"
	"github.com/fastygo/tasktracker/internal/middleware"
	"github.com/fastygo/tasktracker/internal/router"
	"github.com/fastygo/tasktracker/internal/services"
	"github.com/fastygo/tasktracker/internal/services/lifecycle"
	"github.com/fastygo/tasktracker/pkg/httpcontext"
	"github.com/fastygo/tasktracker/pkg/logger"
	"github.com/fastygo/tasktracker/usecase"
	"github.com/fastygo/tasktracker/usecase/assignment"
	authUC "github.com/fastygo/tasktracker/usecase/auth"
	profileUC "github.com/fastygo/tasktracker/usecase/profile"
	"github.com/fastygo/tasktracker/usecase/query"
	taskUC "github.com/fastygo/tasktracker/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
		Sampling:    !cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	st, err := openStores(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("store initialisation failed", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	var (
		journal     usecase.RepairJournal = usecase.NopJournal{}
		repairStore *buffer.Journal
	)
	if cfg.Repair.Enabled {
		repairStore, err = buffer.Open(cfg.Repair.Path)
		if err != nil {
			zapLogger.Fatal("failed to open repair journal", zap.Error(err))
		}
		manager.Register("repair_journal", func(ctx context.Context) error {
			return repairStore.Close()
		})
		journal = services.NewRepairBridge(repairStore)
		st.checks.Journal = repairStore
	}

	mon := monitor.New(st.checks, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	coordinator := assignment.NewCoordinator(st.tasks, st.users, journal, zapLogger)
	engine := query.NewEngine(st.tasks,
		query.WithLegacySkip(cfg.Query.LegacySkip),
		query.WithStatsCache(st.stats),
		query.WithLogger(zapLogger),
	)

	if repairStore != nil {
		processor, err := services.NewRepairProcessor(repairStore, mon, coordinator, zapLogger, services.ProcessorConfig{
			Interval:   cfg.Repair.SyncInterval,
			BatchSize:  cfg.Repair.BatchSize,
			MaxRetries: cfg.Repair.MaxRetry,
			Retention:  time.Duration(cfg.Repair.RetentionHours) * time.Hour,
		})
		if err != nil {
			zapLogger.Fatal("failed to schedule repair processor", zap.Error(err))
		}
		processor.Start()
		manager.Register("repair_processor", processor.Stop)
	}

	tokens := authUC.NewTokenManager(cfg.SigningSecret(), cfg.JWT.Issuer, cfg.JWT.TTL)
	authUseCase := authUC.New(st.users, st.sessions, tokens, zapLogger)
	profileUseCase := profileUC.New(st.users, zapLogger)
	taskUseCase := taskUC.New(st.tasks, st.users, coordinator, engine, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, int64(cfg.Upload.MaxBytes)),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, cfg.Store.Driver, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(authUseCase, cfg.Context.RequestTimeout, zapLogger)
	r := router.New(handlers, authMiddleware, zapLogger)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Go(appCtx, "http_server", func(ctx context.Context) error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()), zap.String("store", cfg.Store.Driver))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	select {
	case <-appCtx.Done():
	case err := <-manager.Errors():
		zapLogger.Error("component failure, shutting down", zap.Error(err))
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	manager.Wait()
}
