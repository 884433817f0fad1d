package mdmcp_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"

	mdmcp "github.com/rickchristie/motherduck-mcp"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() mdmcp.Config {
	return mdmcp.Config{
		Connection: mdmcp.ConnectionConfig{
			Path:         "md:test_db",
			Database:     "test_db",
			Token:        "test-token",
			RequireToken: true,
			SaaSMode:     true,
			ReadOnly:     true,
		},
		Query: mdmcp.QueryConfig{
			TimeoutSeconds: 30,
		},
		Output: mdmcp.OutputConfig{
			MaxRows:  1024,
			MaxChars: 50000,
			Format:   mdmcp.FormatJSON,
		},
	}
}

// mockBackend is a sqlmock database handed out by the instance's opener.
type mockBackend struct {
	mock  sqlmock.Sqlmock
	opens atomic.Int32
	dsn   atomic.Value
}

// newTestInstance creates a MotherDuckMcp whose backend is a sqlmock database.
// Queries are matched literally (whitespace-normalized).
func newTestInstance(t *testing.T, config mdmcp.Config) (*mdmcp.MotherDuckMcp, *mockBackend) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	backend := &mockBackend{mock: mock}
	opener := func(dsn string) (*sql.DB, error) {
		backend.opens.Add(1)
		backend.dsn.Store(dsn)
		return db, nil
	}

	p, err := mdmcp.New(config, testLogger(), mdmcp.WithOpener(opener))
	if err != nil {
		t.Fatalf("failed to create MotherDuckMcp: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		p.Close(context.Background())
	})
	return p, backend
}

// columns builds a sqlmock row set from "name", "TYPE" pairs.
func columns(nameTypes ...string) *sqlmock.Rows {
	defs := make([]*sqlmock.Column, 0, len(nameTypes)/2)
	for i := 0; i+1 < len(nameTypes); i += 2 {
		defs = append(defs, sqlmock.NewColumn(nameTypes[i]).OfType(nameTypes[i+1], ""))
	}
	return sqlmock.NewRowsWithColumnDefinition(defs...)
}

// structuredResult mirrors the json output format.
type structuredResult struct {
	Data      []map[string]any `json:"data"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	Warning   string           `json:"warning"`
}

func parseStructured(t *testing.T, output string) structuredResult {
	t.Helper()
	var result structuredResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse structured output: %v\n%s", err, output)
	}
	return result
}
