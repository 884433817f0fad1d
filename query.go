package mdmcp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Query executes one SQL statement and returns the rendered, size-capped
// result. Every failure is returned as *ConfigurationError,
// *QueryTimeoutError or *QueryExecutionError; the underlying cause is logged,
// never returned.
func (m *MotherDuckMcp) Query(ctx context.Context, input QueryInput) (string, error) {
	text := strings.TrimSpace(input.Query)
	if text == "" {
		return "", m.handleError("query", errors.New("query must not be empty"))
	}
	if len(text) > m.config.Query.MaxSQLLength {
		return "", m.handleError("query", fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(text), m.config.Query.MaxSQLLength))
	}

	timeout, timeoutRule := m.timeoutMgr.GetTimeoutWithPattern(text)
	return m.run(ctx, "query", queryRequest{SQL: text, Timeout: timeout}, timeoutRule)
}

// run drives one request through execute → materialize → sanitize → render.
func (m *MotherDuckMcp) run(ctx context.Context, op string, req queryRequest, timeoutRule string) (string, error) {
	startTime := time.Now()

	var rs *RecordSet
	err := m.exec.execute(ctx, req, func(rows *sql.Rows) error {
		var err error
		rs, err = materialize(rows, m.config.Output.MaxRows)
		return err
	})
	if err != nil {
		return "", m.handleError(op, err)
	}

	m.sanitizer.SanitizeRows(rs.Rows)
	if m.sanitizer.HasRules() {
		for i, row := range rs.Rows {
			rs.Records[i] = zipRecord(rs.Columns, row)
		}
	}

	output, err := m.renderer.Render(rs, m.config.Output.MaxChars)
	if err != nil {
		return "", m.handleError(op, err)
	}

	logEvent := m.logger.Info().
		Str("op", op).
		Str("sql", truncateForLog(req.SQL, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(rs.Rows)).
		Bool("truncated", rs.MoreRows).
		Int("output_chars", utf8.RuneCountInString(output))
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if m.sanitizer.HasRules() {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return output, nil
}

// handleError logs err with full detail and returns its normalized form.
// Execution errors get matching error_prompts guidance attached as Hint.
func (m *MotherDuckMcp) handleError(op string, err error) error {
	normalized := normalizeError(op, err)

	logEvent := m.logger.Error().Err(err).Str("op", op)
	var execErr *QueryExecutionError
	if errors.As(normalized, &execErr) {
		prompt, patterns := m.errPrompts.Match(execErr.Message)
		if len(patterns) > 0 {
			logEvent = logEvent.Strs("error_prompts", patterns)
		}
		execErr.Hint = prompt
	}
	var timeoutErr *QueryTimeoutError
	if errors.As(normalized, &timeoutErr) {
		logEvent = logEvent.Dur("timeout", timeoutErr.Timeout)
	}
	logEvent.Msg("query error")

	return normalized
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
