package mdmcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rickchristie/motherduck-mcp/internal/watchdog"
)

// queryRequest is one query submission. Timeout <= 0 means unbounded.
type queryRequest struct {
	SQL     string
	Args    []any
	Timeout time.Duration
}

// executor runs one query at a time on the instance's connection.
type executor struct {
	conns *ConnectionManager
	// slot serializes submissions: the connection is not safe for
	// concurrent queries.
	slot chan struct{}
}

func newExecutor(conns *ConnectionManager) *executor {
	return &executor{conns: conns, slot: make(chan struct{}, 1)}
}

// execute runs req and hands the live cursor to consume. The cursor is closed
// and the watchdog disarmed before execute returns, whatever the outcome.
// When the watchdog interrupted the query the error is an *interruptError and
// whatever consume collected must be discarded.
func (e *executor) execute(ctx context.Context, req queryRequest, consume func(*sql.Rows) error) error {
	// 1. Wait for the connection to be free (respects context cancellation)
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire query slot: another query is still running: %w", ctx.Err())
	}
	defer func() { <-e.slot }()

	// 2. Lazily connect
	conn, err := e.conns.Ensure(ctx)
	if err != nil {
		return err
	}

	// 3. Arm the watchdog. Cancelling queryCtx makes the driver interrupt the
	// running statement; the connection itself stays open.
	queryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wd := watchdog.Arm(req.Timeout, cancel)
	defer wd.Disarm()

	// 4. Submit and drain
	err = e.run(queryCtx, conn, req, consume)
	if err == nil {
		return nil
	}
	if wd.Fired() {
		return &interruptError{timeout: req.Timeout, err: err}
	}
	return err
}

func (e *executor) run(ctx context.Context, conn *sql.Conn, req queryRequest, consume func(*sql.Rows) error) error {
	rows, err := conn.QueryContext(ctx, req.SQL, req.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	return consume(rows)
}
