package relationaldb

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics interface for monitoring
type Metrics interface {
	IncrementCounter(name string, tags map[string]string)
	RecordDuration(name string, duration time.Duration, tags map[string]string)
}

// NoOpMetrics provides a no-op metrics implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) IncrementCounter(name string, tags map[string]string)                       {}
func (m *NoOpMetrics) RecordDuration(name string, duration time.Duration, tags map[string]string) {}

// Manager provides lifecycle management and utilities for database operations
type Manager struct {
	repoManager RepositoryManager
	config      *Config
	logger      *zap.Logger
	metrics     Metrics

	// Health checking
	healthCheckInterval time.Duration
	healthCancel        context.CancelFunc
	healthWg            sync.WaitGroup

	// Connection state
	mu        sync.RWMutex
	connected bool
}

// ManagerOption defines functional options for Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger for the manager
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics collector for the manager
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithHealthCheckInterval sets the health check interval. Zero disables
// the background checker.
func WithHealthCheckInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.healthCheckInterval = interval
	}
}

// NewManager creates a new database manager
func NewManager(repoManager RepositoryManager, config *Config, options ...ManagerOption) *Manager {
	manager := &Manager{
		repoManager:         repoManager,
		config:              config,
		logger:              zap.NewNop(),
		metrics:             &NoOpMetrics{},
		healthCheckInterval: time.Minute,
	}

	for _, option := range options {
		option(manager)
	}

	return manager
}

// Open opens the database connection and starts the health checker
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return nil
	}

	tags := map[string]string{"driver": m.config.Driver}

	if err := m.repoManager.Open(ctx); err != nil {
		m.logger.Error("failed to open database connection", zap.Error(err))
		m.metrics.IncrementCounter("db_connection_failed", tags)
		return WrapError(err, "open_database")
	}

	if err := m.repoManager.System().Ping(ctx); err != nil {
		m.logger.Error("database health check failed", zap.Error(err))
		m.metrics.IncrementCounter("db_health_check_failed", tags)
		return WrapError(err, "initial_health_check")
	}

	m.connected = true

	if m.healthCheckInterval > 0 {
		m.startHealthChecker()
	}

	m.logger.Info("database manager opened",
		zap.String("driver", m.config.Driver),
		zap.String("database", m.config.Database))
	m.metrics.IncrementCounter("db_connection_opened", tags)

	return nil
}

// Close stops the health checker and closes the database connection
func (m *Manager) Close(ctx context.Context) error {
	// The checker takes the read lock, stop it before locking.
	m.stopHealthChecker()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	if err := m.repoManager.Close(ctx); err != nil {
		m.logger.Error("failed to close database connection", zap.Error(err))
		return WrapError(err, "close_database")
	}

	m.connected = false
	m.logger.Info("database manager closed")

	return nil
}

// IsConnected returns whether the database is connected
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// HealthCheck performs a manual health check
func (m *Manager) HealthCheck(ctx context.Context) error {
	start := time.Now()
	defer func() {
		m.metrics.RecordDuration("db_health_check", time.Since(start), map[string]string{
			"driver": m.config.Driver,
		})
	}()

	if !m.IsConnected() {
		return ErrDatabaseClosed
	}

	if err := m.repoManager.System().Ping(ctx); err != nil {
		m.logger.Error("health check failed", zap.Error(err))
		m.metrics.IncrementCounter("db_health_check_failed", map[string]string{
			"driver": m.config.Driver,
		})
		return WrapError(err, "health_check")
	}

	return nil
}

// ExecuteWithRetry executes a function, retrying only retryable errors with
// linear backoff capped at RetryMaxDelay.
func (m *Manager) ExecuteWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * m.config.RetryDelay
			if delay > m.config.RetryMaxDelay {
				delay = m.config.RetryMaxDelay
			}

			m.logger.Debug("retrying operation",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.NamedError("last_error", lastErr))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		start := time.Now()
		err := operation()
		m.metrics.RecordDuration("db_operation", time.Since(start), map[string]string{
			"driver":  m.config.Driver,
			"attempt": strconv.Itoa(attempt),
		})

		if err == nil {
			if attempt > 0 {
				m.logger.Info("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			// Non-retryable errors keep their identity for errors.Is callers.
			return err
		}

		m.metrics.IncrementCounter("db_operation_retryable_error", map[string]string{
			"driver": m.config.Driver,
		})
	}

	m.logger.Error("operation failed after all retries",
		zap.Int("attempts", m.config.MaxRetries+1),
		zap.Error(lastErr))

	return WrapError(lastErr, "execute_with_retry")
}

// ExecuteInTransaction executes a function within a transaction with retry logic
func (m *Manager) ExecuteInTransaction(ctx context.Context, operation func(TransactionContext) error) error {
	return m.ExecuteWithRetry(ctx, func() error {
		return m.repoManager.WithTransaction(ctx, operation)
	})
}

// Repositories returns the underlying repository manager
func (m *Manager) Repositories() RepositoryManager {
	return m.repoManager
}

func (m *Manager) startHealthChecker() {
	ctx, cancel := context.WithCancel(context.Background())
	m.healthCancel = cancel

	m.healthWg.Add(1)
	go func() {
		defer m.healthWg.Done()

		ticker := time.NewTicker(m.healthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, time.Second*10)
				if err := m.HealthCheck(checkCtx); err != nil {
					m.logger.Warn("background health check failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

func (m *Manager) stopHealthChecker() {
	if m.healthCancel != nil {
		m.healthCancel()
		m.healthWg.Wait()
		m.healthCancel = nil
	}
}
