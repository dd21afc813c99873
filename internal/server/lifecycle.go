// Package server runs the process's long-lived services: it starts them,
// waits for SIGINT/SIGTERM or a failure, and stops them in reverse order.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component.
type Service interface {
	// Start runs the service until ctx is cancelled or it fails. A nil
	// return before cancellation means the service finished its work.
	Start(ctx context.Context) error
	// Stop releases the service's resources. It is called once, after ctx
	// has been cancelled.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
// A nil StopFn is allowed.
type FuncService struct {
	StartFn func(ctx context.Context) error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start(ctx context.Context) error { return f.StartFn(ctx) }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() {
	if f.StopFn != nil {
		f.StopFn()
	}
}

// Lifecycle manages the startup and shutdown of multiple services.
// Services are started in order and stopped in reverse order.
type Lifecycle struct {
	logger   *zap.Logger
	services []namedService
	mu       sync.Mutex
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service. Services are started in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts all services and blocks until a termination signal arrives, ctx
// is cancelled, or a service fails. Every service's Start has returned and
// every Stop has run before Run returns.
//
// Postcondition: Returns the first service failure, or nil on a clean shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failure  error
	)
	for _, ns := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			err := ns.service.Start(ctx)
			if err == nil || ctx.Err() != nil {
				l.logger.Info("service exited",
					zap.String("service", ns.name),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				return
			}
			l.logger.Error("service failed",
				zap.String("service", ns.name),
				zap.Error(err),
				zap.Duration("uptime", time.Since(svcStart)),
			)
			failOnce.Do(func() { failure = fmt.Errorf("service %s: %w", ns.name, err) })
			cancel()
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	<-ctx.Done()
	l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))

	l.shutdown(services)
	wg.Wait()

	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return failure
}

func (l *Lifecycle) shutdown(services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service", zap.String("service", ns.name))
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}
