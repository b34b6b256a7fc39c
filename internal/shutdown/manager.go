package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/core/domain"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
)

// Manager управляет graceful shutdown приложения
type Manager struct {
	services []domain.GracefulShutdownInterface
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewManager создает новый менеджер shutdown
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		services: make([]domain.GracefulShutdownInterface, 0),
		timeout:  timeout,
	}
}

// Register регистрирует сервис для graceful shutdown
func (m *Manager) Register(service domain.GracefulShutdownInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services = append(m.services, service)
	logutils.Log.WithField("service", service.Name()).Info("Service registered for graceful shutdown")
}

// Shutdown останавливает все зарегистрированные сервисы параллельно
func (m *Manager) Shutdown() error {
	logutils.Log.Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.RLock()
	services := make([]domain.GracefulShutdownInterface, len(m.services))
	copy(services, m.services)
	m.mu.RUnlock()

	errChan := make(chan error, len(services))
	var wg sync.WaitGroup

	for _, service := range services {
		wg.Add(1)
		go func(svc domain.GracefulShutdownInterface) {
			defer wg.Done()

			logutils.Log.WithField("service", svc.Name()).Info("Shutting down service")

			if err := svc.Shutdown(ctx); err != nil {
				logutils.Log.WithError(err).WithField("service", svc.Name()).Error("Error during service shutdown")
				errChan <- fmt.Errorf("service %s shutdown failed: %w", svc.Name(), err)
			} else {
				logutils.Log.WithField("service", svc.Name()).Info("Service shutdown completed")
			}
		}(service)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logutils.Log.Info("All services shutdown completed")
	case <-ctx.Done():
		logutils.Log.Warn("Shutdown timeout exceeded, forcing shutdown")
		return fmt.Errorf("shutdown timeout exceeded")
	}

	close(errChan)
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		logutils.Log.WithField("error_count", len(errs)).Error("Some services failed to shutdown gracefully")
		return fmt.Errorf("shutdown completed with %d errors", len(errs))
	}

	logutils.Log.Info("Graceful shutdown completed successfully")
	return nil
}
