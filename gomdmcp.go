package mdmcp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickchristie/motherduck-mcp/internal/errprompt"
	"github.com/rickchristie/motherduck-mcp/internal/sanitize"
	"github.com/rickchristie/motherduck-mcp/internal/timeout"
)

// MotherDuckMcp is the core engine behind the query, show_tables and
// get_guide tools. It owns exactly one backend connection; queries are
// executed one at a time and concurrent callers wait their turn.
type MotherDuckMcp struct {
	config     Config
	conns      *ConnectionManager
	exec       *executor
	renderer   Renderer
	sanitizer  *sanitize.Sanitizer
	errPrompts *errprompt.Matcher
	timeoutMgr *timeout.Manager
	logger     zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	open OpenFunc
}

// WithOpener replaces the function used to open the backend database.
// The default opens the "duckdb" database/sql driver.
func WithOpener(open OpenFunc) Option {
	return func(o *options) {
		o.open = open
	}
}

// New creates a new MotherDuckMcp instance. No connection is made until the
// first query (or Ping).
// Panics on invalid programmer config (negative limits, unknown format).
// Returns *ConfigurationError for operator config problems such as a missing
// token, and a plain error for invalid regex rules.
func New(config Config, logger zerolog.Logger, opts ...Option) (*MotherDuckMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if config.Output.MaxRows < 0 {
		panic("mdmcp: output.max_rows must be >= 0")
	}
	if config.Output.MaxChars < 0 {
		panic("mdmcp: output.max_chars must be >= 0")
	}
	if config.Query.MaxSQLLength < 0 {
		panic("mdmcp: query.max_sql_length must be >= 0")
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("mdmcp: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}

	// Apply defaults for zero values
	if config.Output.MaxRows == 0 {
		config.Output.MaxRows = DefaultMaxRows
	}
	if config.Output.MaxChars == 0 {
		config.Output.MaxChars = DefaultMaxChars
	}
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = DefaultMaxSQLLength
	}
	if config.Query.ShowTablesTimeoutSeconds == 0 {
		config.Query.ShowTablesTimeoutSeconds = config.Query.TimeoutSeconds
	}

	renderer, err := NewRenderer(config.Output.Format)
	if err != nil {
		panic("mdmcp: " + err.Error())
	}

	// --- Connection (validated now, opened lazily) ---

	conns, err := NewConnectionManager(config.Connection, o.open, logger)
	if err != nil {
		return nil, err
	}

	// --- Initialize internal components ---

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		return nil, err
	}
	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		return nil, err
	}
	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.TimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		return nil, err
	}
	if tmgr.Disabled() {
		logger.Warn().Int("timeout_rules", len(timeoutRules)).Msg("default query timeout is disabled, unmatched queries run unbounded")
	}

	return &MotherDuckMcp{
		config:     config,
		conns:      conns,
		exec:       newExecutor(conns),
		renderer:   renderer,
		sanitizer:  san,
		errPrompts: matcher,
		timeoutMgr: tmgr,
		logger:     logger,
	}, nil
}

// Ping opens the connection if needed and verifies it is alive. Used at
// startup so a bad token or unreachable backend fails before serving.
func (m *MotherDuckMcp) Ping(ctx context.Context) error {
	conn, err := m.conns.Ensure(ctx)
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

// SessionHint returns the session hint of the live connection (0 before the
// first connection).
func (m *MotherDuckMcp) SessionHint() int {
	return m.conns.SessionHint()
}

// Close closes the backend connection. Accepts context for symmetry with the
// serve shutdown path; closing a DuckDB handle is not cancellable.
func (m *MotherDuckMcp) Close(ctx context.Context) error {
	return m.conns.Close()
}

// mapSanitizationRules converts mdmcp SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapErrorPromptRules converts mdmcp ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
