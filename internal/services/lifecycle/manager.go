package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// RunFunc is a long-running component. It returns when ctx is cancelled or it fails.
type RunFunc func(ctx context.Context) error

// Manager coordinates background components, graceful shutdown hooks and OS signals.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook

	errCh chan error
	wg    sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error

	exit func(code int)
}

// New creates a lifecycle manager with the desired timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
		errCh:   make(chan error, 8),
		exit:    os.Exit,
	}
}

// Go runs a component in the background. A failure other than context
// cancellation is reported on Errors instead of terminating the process.
func (m *Manager) Go(ctx context.Context, name string, run RunFunc) {
	if run == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("component started", zap.String("component", name))
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
			select {
			case m.errCh <- fmt.Errorf("%s: %w", name, err):
			default:
			}
		}
	}()
}

// Errors delivers failures of components started with Go.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Wait blocks until every component started with Go has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Register adds a shutdown hook. Hooks run in reverse registration order, so
// a component registered after its dependencies is stopped before them.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown runs every hook once within the manager timeout. A failing or slow
// hook does not stop the rest from running. Later calls return the first result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.runHooks(ctx)
	})
	return m.shutdownErr
}

func (m *Manager) runHooks(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	hooks := append([]hook(nil), m.hooks...)
	m.mu.Unlock()

	var result error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		started := time.Now()
		err := h.fn(ctx)
		took := zap.Duration("took", time.Since(started))
		if err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), took, zap.Error(err))
			result = errors.Join(result, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.logger.Info("component stopped", zap.String("component", h.name), took)
	}
	return result
}

// Listen cancels the application context on SIGINT or SIGTERM. A second
// signal while shutting down exits immediately.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()

		sig = <-sigCh
		m.logger.Warn("second signal received, exiting without cleanup", zap.String("signal", sig.String()))
		m.exit(1)
	}()
}
