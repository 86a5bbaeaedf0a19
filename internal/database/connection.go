package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// ErrNotConnected is returned while no healthy connection is available.
var ErrNotConnected = errors.New("database not connected")

// Settings is the part of the application configuration the connection needs.
type Settings interface {
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBQueryTimeout() time.Duration
}

// Connection manages a SurrealDB connection, reconnecting with backoff when
// an operation fails because the socket went away.
type Connection struct {
	cfg     Settings
	conn    *surrealdb.DB
	retryer *Retryer
	logger  *slog.Logger

	mu       sync.RWMutex
	healthy  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewConnection creates an unconnected managed connection.
func NewConnection(cfg Settings) *Connection {
	return &Connection{
		cfg:     cfg,
		retryer: NewRetryer(),
		logger:  slog.Default().With("component", "database", "db_url", redactDBURL(cfg.GetDBURL())),
		done:    make(chan struct{}),
	}
}

// Connect establishes the initial connection. Calling it again is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	return c.reconnect(ctx)
}

// WithConnection runs fn with the live connection. When fn fails with what
// looks like a lost connection, the connection is re-established and fn is
// retried with backoff.
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetDBQueryTimeout())
	defer cancel()

	err := fn(conn)
	if err == nil || !isConnectionError(err) {
		return err
	}

	c.logger.WarnContext(ctx, "Database operation failed, reconnecting", "error", err)
	return c.retryer.Retry(ctx, func() error {
		if rerr := c.forceReconnect(ctx); rerr != nil {
			return fmt.Errorf("reconnection failed: %w (original error: %v)", rerr, err)
		}
		return fn(c.current())
	})
}

// StartMonitoring checks the connection every interval and reconnects when
// the health check fails. It stops when Close is called.
func (c *Connection) StartMonitoring(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GetDBQueryTimeout())
				if err := c.checkHealth(ctx); err != nil {
					c.logger.WarnContext(ctx, "Database health check failed, reconnecting", "error", err)
					if rerr := c.retryer.Retry(ctx, func() error { return c.forceReconnect(ctx) }); rerr != nil {
						c.logger.ErrorContext(ctx, "Failed to reconnect to database", "error", rerr)
					}
				}
				cancel()
			case <-c.done:
				return
			}
		}
	}()
}

// Close stops monitoring and closes the connection.
func (c *Connection) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	c.healthy = false
	return err
}

// IsHealthy reports the result of the last connect or health check.
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Connection) current() *surrealdb.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Connection) forceReconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect(ctx)
}

// reconnect must be called with mu held.
func (c *Connection) reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close(ctx)
		c.conn = nil
	}
	c.healthy = false

	conn, err := surrealdb.FromEndpointURLString(ctx, c.cfg.GetDBURL())
	if err != nil {
		return fmt.Errorf("failed to connect to surrealdb: %w", err)
	}

	auth := &surrealdb.Auth{
		Username: c.cfg.GetDBUser(),
		Password: c.cfg.GetDBPass(),
	}
	if _, err := conn.SignIn(ctx, auth); err != nil {
		conn.Close(ctx)
		return fmt.Errorf("failed to sign in: %w", err)
	}

	if err := conn.Use(ctx, c.cfg.GetDBNs(), c.cfg.GetDBDb()); err != nil {
		conn.Close(ctx)
		return fmt.Errorf("failed to use namespace/db: %w", err)
	}

	c.conn = conn
	c.healthy = true
	c.logger.InfoContext(ctx, "Connected to SurrealDB", "namespace", c.cfg.GetDBNs(), "database", c.cfg.GetDBDb())
	return nil
}

func (c *Connection) checkHealth(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	_, err := conn.Version(ctx)

	c.mu.Lock()
	c.healthy = err == nil
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// isConnectionError reports whether err is likely caused by a lost
// connection rather than by the statement itself.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "use of closed network connection")
}

// redactDBURL hides the password of a database URL for logging.
func redactDBURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
