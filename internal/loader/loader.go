// Package loader bulk-loads parquet files into DuckDB tables, one table per
// file. It is an operator tool and is never reachable from the MCP tools.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// DefaultPattern matches every parquet file below the load directory.
const DefaultPattern = "**/*.parquet"

// Execer is the subset of *sql.DB / *sql.Conn the loader needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Config controls which files are loaded.
type Config struct {
	// Dir is the directory searched for files.
	Dir string
	// Pattern is a doublestar glob relative to Dir. Empty means DefaultPattern.
	Pattern string
}

// Result is the outcome of loading one file.
type Result struct {
	File     string
	Table    string
	Rows     int64
	Duration time.Duration
	Err      error
}

// Load creates or replaces one table per matched file. A failing file does
// not stop the others; the returned error joins every per-file failure.
// Results are returned in glob order, failed files included.
func Load(ctx context.Context, db Execer, config Config, logger zerolog.Logger) ([]Result, error) {
	absDir, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", config.Dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", absDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}

	pattern := config.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(absDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to match %q in %s: %w", pattern, absDir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q in %s", pattern, absDir)
	}

	results := make([]Result, 0, len(matches))
	var errs []error
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := loadFile(ctx, db, filepath.Join(absDir, filepath.FromSlash(match)), TableName(match))
		results = append(results, res)
		if res.Err != nil {
			logger.Error().Err(res.Err).Str("file", res.File).Str("table", res.Table).Msg("load failed")
			errs = append(errs, fmt.Errorf("%s: %w", match, res.Err))
			continue
		}
		logger.Info().
			Str("file", res.File).
			Str("table", res.Table).
			Int64("rows", res.Rows).
			Dur("duration", res.Duration).
			Msg("table loaded")
	}

	return results, errors.Join(errs...)
}

func loadFile(ctx context.Context, db Execer, file, table string) Result {
	start := time.Now()
	res := Result{File: file, Table: table}

	result, err := db.ExecContext(ctx, CreateTableSQL(table, file))
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	// DuckDB reports the inserted row count for CREATE TABLE AS.
	if n, err := result.RowsAffected(); err == nil {
		res.Rows = n
	}
	return res
}

// TableName derives the table name from a file's base name without its
// extension.
func TableName(file string) string {
	base := path.Base(filepath.ToSlash(file))
	return strings.TrimSuffix(base, path.Ext(base))
}

// CreateTableSQL returns the statement that (re)creates table from a parquet
// file.
func CreateTableSQL(table, file string) string {
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
		quoteIdent(table), quoteLiteral(file))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
