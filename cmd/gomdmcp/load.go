package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	mdmcp "github.com/rickchristie/motherduck-mcp"
	"github.com/rickchristie/motherduck-mcp/internal/loader"
)

var (
	loadDir     string
	loadPattern string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Create one table per parquet file in a directory",
	Long: `Load connects read-write to the configured database and runs
CREATE OR REPLACE TABLE "<file stem>" AS SELECT * FROM read_parquet('<file>')
for every matching file. Failed files are reported and do not stop the rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runLoad(ctx, os.Stdout)
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadDir, "dir", "data", "directory containing the files to load")
	loadCmd.Flags().StringVar(&loadPattern, "pattern", loader.DefaultPattern, "doublestar glob relative to --dir")
}

func runLoad(ctx context.Context, w io.Writer) error {
	serverConfig, err := loadServerConfig(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyEnvOverrides(serverConfig, os.LookupEnv); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	// Loading writes tables and reads local files.
	connConfig := serverConfig.Connection
	connConfig.ReadOnly = false
	connConfig.SaaSMode = false

	logger := setupLogger(serverConfig.Logging, "load")
	conns, err := mdmcp.NewConnectionManager(connConfig, nil, logger)
	if err != nil {
		return err
	}
	defer conns.Close()

	conn, err := conns.Ensure(ctx)
	if err != nil {
		return err
	}

	pterm.Fprintln(w, pterm.Info.Sprintf("Loading %s from %s into %s", loadPattern, loadDir, connConfig.Path))
	results, loadErr := loader.Load(ctx, conn, loader.Config{Dir: loadDir, Pattern: loadPattern}, logger)
	if len(results) > 0 {
		if err := printLoadSummary(w, results); err != nil {
			return err
		}
	}
	return loadErr
}

// printLoadSummary prints one row per file plus a success/failure line.
func printLoadSummary(w io.Writer, results []loader.Result) error {
	data := pterm.TableData{{"Table", "Rows", "Time", "Status"}}
	var loaded, failed int
	var totalRows int64
	for _, r := range results {
		status := "ok"
		rows := humanize.Comma(r.Rows)
		if r.Err != nil {
			status = r.Err.Error()
			rows = "-"
			failed++
		} else {
			loaded++
			totalRows += r.Rows
		}
		data = append(data, []string{r.Table, rows, r.Duration.Round(time.Millisecond).String(), status})
	}

	table, err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	pterm.Fprintln(w, table)

	summary := fmt.Sprintf("Loaded %s (%s rows)", plural(loaded, "table"), humanize.Comma(totalRows))
	if failed > 0 {
		pterm.Fprintln(w, pterm.Warning.Sprintf("%s, %s failed", summary, plural(failed, "file")))
	} else {
		pterm.Fprintln(w, pterm.Success.Sprint(summary))
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
