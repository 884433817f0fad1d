package mdmcp

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DriverName is the database/sql driver the default opener uses. It is
// registered by github.com/marcboeker/go-duckdb/v2, which this package imports
// for its value types.
const DriverName = "duckdb"

// OpenFunc opens a *sql.DB for a DSN. Tests replace it with a sqlmock opener.
type OpenFunc func(dsn string) (*sql.DB, error)

func openDuckDB(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}

// ConnectionManager owns the single backend connection of a service instance.
// The connection and its session hint are created lazily on the first Ensure
// and kept until Close.
type ConnectionManager struct {
	config ConnectionConfig
	open   OpenFunc
	intn   func(n int) int
	logger zerolog.Logger

	mu          sync.Mutex
	db          *sql.DB
	conn        *sql.Conn
	sessionHint int
	dsn         string
}

// NewConnectionManager validates config and returns a manager with no open
// connection. It returns a *ConfigurationError when the target is malformed
// or a required token is missing.
func NewConnectionManager(config ConnectionConfig, open OpenFunc, logger zerolog.Logger) (*ConnectionManager, error) {
	if err := validateConnectionConfig(config); err != nil {
		return nil, err
	}
	if open == nil {
		open = openDuckDB
	}
	return &ConnectionManager{
		config: config,
		open:   open,
		intn:   rand.IntN,
		logger: logger,
	}, nil
}

func validateConnectionConfig(c ConnectionConfig) error {
	if strings.TrimSpace(c.Path) == "" {
		return &ConfigurationError{Message: "connection.path must be set (e.g. md:my_db or a local .duckdb file)"}
	}
	if strings.ContainsAny(c.Path, "?#") {
		return &ConfigurationError{Message: fmt.Sprintf("connection.path %q must not contain query parameters", c.Path)}
	}
	if c.RequireToken && c.Token == "" {
		return &ConfigurationError{Message: "MOTHERDUCK_TOKEN is required but not set"}
	}
	if c.SessionHintMax < 0 {
		return &ConfigurationError{Message: "connection.session_hint_max must be >= 0"}
	}
	return nil
}

// Ensure returns the instance's connection, opening it on first use.
// Subsequent calls return the same handle and never re-pick the session hint.
func (m *ConnectionManager) Ensure(ctx context.Context) (*sql.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}

	hint := m.intn(m.sessionHintMax()) + 1
	dsn := buildDSN(m.config, hint)

	db, err := m.open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", m.config.Path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", m.config.Path, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", m.config.Path, err)
	}

	m.db = db
	m.conn = conn
	m.sessionHint = hint
	m.dsn = dsn

	m.logger.Info().
		Str("path", m.config.Path).
		Int("session_hint", hint).
		Bool("saas_mode", m.config.SaaSMode).
		Bool("read_only", m.config.ReadOnly).
		Msg("connected to database")

	return conn, nil
}

// SessionHint returns the session hint picked at connection time, or 0 when
// no connection has been made yet.
func (m *ConnectionManager) SessionHint() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionHint
}

// DSN returns the connection target with the token masked, or "" before the
// first Ensure.
func (m *ConnectionManager) DSN() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dsn == "" {
		return ""
	}
	return maskToken(m.dsn, m.config.Token)
}

// Close releases the connection. It is safe to call without a prior Ensure.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	connErr := m.conn.Close()
	dbErr := m.db.Close()
	m.conn = nil
	m.db = nil
	if connErr != nil {
		return fmt.Errorf("failed to close connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

func (m *ConnectionManager) sessionHintMax() int {
	if m.config.SessionHintMax > 0 {
		return m.config.SessionHintMax
	}
	if m.config.RequireToken {
		return defaultSessionHintMaxHosted
	}
	return defaultSessionHintMaxLocal
}

// isMotherDuckPath reports whether path targets MotherDuck rather than a
// local DuckDB file.
func isMotherDuckPath(path string) bool {
	return strings.HasPrefix(path, "md:") || strings.HasPrefix(path, "motherduck:")
}

// buildDSN assembles the DuckDB connection string. Parameters are encoded in
// sorted key order so the DSN is stable for a given config and hint.
func buildDSN(c ConnectionConfig, sessionHint int) string {
	params := url.Values{}
	if c.ReadOnly {
		params.Set("access_mode", "read_only")
	}
	if c.HomeDir != "" {
		params.Set("home_directory", c.HomeDir)
	}
	if isMotherDuckPath(c.Path) {
		if c.Token != "" {
			params.Set("motherduck_token", c.Token)
		}
		if c.SaaSMode {
			params.Set("saas_mode", "true")
		}
		params.Set("session_hint", strconv.Itoa(sessionHint))
	}
	if len(params) == 0 {
		return c.Path
	}
	return c.Path + "?" + params.Encode()
}

func maskToken(dsn, token string) string {
	if token == "" {
		return dsn
	}
	return strings.ReplaceAll(dsn, url.QueryEscape(token), "****")
}
