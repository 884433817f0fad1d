package mdmcp

import (
	"context"
	"time"
)

const showTablesSQL = `SELECT * FROM duckdb_tables() WHERE database_name = ?`

// ShowTables lists the tables of a database through the same pipeline as
// Query, so row and character limits apply. A database with no tables yields
// an empty result, not an error.
func (m *MotherDuckMcp) ShowTables(ctx context.Context, input ShowTablesInput) (string, error) {
	name := input.DatabaseName
	if name == "" {
		name = m.config.Connection.Database
	}
	if name == "" {
		return "", m.handleError("show_tables", &QueryExecutionError{Message: "database_name parameter is required"})
	}

	req := queryRequest{
		SQL:     showTablesSQL,
		Args:    []any{name},
		Timeout: time.Duration(m.config.Query.ShowTablesTimeoutSeconds) * time.Second,
	}
	return m.run(ctx, "show_tables", req, "")
}
