// Package mdmcp exposes MotherDuck and DuckDB to AI agents through the Model
// Context Protocol (MCP).
//
// It serves the query, show_tables and get_guide tools plus an initial prompt.
// Every query runs on a single lazily opened connection. A session hint picked
// once per instance keeps the connection pinned to the same MotherDuck
// read-scaling replica.
//
// Queries are bounded three ways: a watchdog interrupts statements that run
// past the timeout, at most max_rows rows are materialized (one extra row is
// read only to detect truncation), and rendered output is cut at max_chars
// characters with a notice appended.
//
// Failures surface as one of [ConfigurationError], [QueryTimeoutError] or
// [QueryExecutionError]. The backend cause is logged, never wrapped.
//
// # Library Usage
//
//	import _ "github.com/marcboeker/go-duckdb/v2"
//
//	p, err := mdmcp.New(mdmcp.Config{
//		Connection: mdmcp.ConnectionConfig{
//			Path:         "md:my_db",
//			Database:     "my_db",
//			Token:        os.Getenv("MOTHERDUCK_TOKEN"),
//			RequireToken: true,
//			SaaSMode:     true,
//			ReadOnly:     true,
//		},
//		Query:  mdmcp.QueryConfig{TimeoutSeconds: 120},
//		Output: mdmcp.OutputConfig{MaxRows: 1024, MaxChars: 50000},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	// Use directly
//	output, err := p.Query(ctx, mdmcp.QueryInput{Query: "SELECT 42 AS answer"})
//
//	// Or register as MCP tools
//	mdmcp.RegisterMCPTools(mcpServer, p)
//
// Tests and embedders can supply their own database handle with [WithOpener].
package mdmcp
