package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("PAR1"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestTableName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"orders.parquet":             "orders",
		"2024/events.snappy.parquet": "events.snappy",
		"noext":                      "noext",
	}
	for in, want := range tests {
		if got := TableName(in); got != want {
			t.Errorf("TableName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateTableSQL_Quoting(t *testing.T) {
	t.Parallel()
	got := CreateTableSQL(`we"ird`, "/data/o'brien.parquet")
	want := `CREATE OR REPLACE TABLE "we""ird" AS SELECT * FROM read_parquet('/data/o''brien.parquet')`
	if got != want {
		t.Fatalf("CreateTableSQL() = %q, want %q", got, want)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "orders.parquet", "nested/customers.parquet", "readme.txt")

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec(CreateTableSQL("orders", filepath.Join(dir, "orders.parquet"))).
		WillReturnResult(sqlmock.NewResult(0, 1500))
	mock.ExpectExec(CreateTableSQL("customers", filepath.Join(dir, "nested", "customers.parquet"))).
		WillReturnResult(sqlmock.NewResult(0, 20))

	results, err := Load(context.Background(), db, Config{Dir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	rows := map[string]int64{}
	for _, r := range results {
		rows[r.Table] = r.Rows
	}
	if rows["orders"] != 1500 || rows["customers"] != 20 {
		t.Fatalf("unexpected row counts %v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoad_ContinuesPastFailures(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "a.parquet", "b.parquet", "c.parquet")

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	badErr := errors.New("Invalid Input Error: No magic bytes found at end of file")
	mock.ExpectExec(CreateTableSQL("a", filepath.Join(dir, "a.parquet"))).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(CreateTableSQL("b", filepath.Join(dir, "b.parquet"))).WillReturnError(badErr)
	mock.ExpectExec(CreateTableSQL("c", filepath.Join(dir, "c.parquet"))).WillReturnResult(sqlmock.NewResult(0, 3))

	results, err := Load(context.Background(), db, Config{Dir: dir, Pattern: "*.parquet"}, zerolog.Nop())
	if !errors.Is(err, badErr) {
		t.Fatalf("expected joined per-file error, got %v", err)
	}
	if !strings.Contains(err.Error(), "b.parquet") {
		t.Fatalf("expected error to name the failed file, got %q", err.Error())
	}
	if len(results) != 3 {
		t.Fatalf("expected a result per file, got %d", len(results))
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failed file, got %d", failed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoad_NoMatches(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "notes.txt")

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	if _, err := Load(context.Background(), db, Config{Dir: dir}, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "no files match") {
		t.Fatalf("expected no-match error, got %v", err)
	}
}

func TestLoad_InvalidInput(t *testing.T) {
	t.Parallel()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	if _, err := Load(context.Background(), db, Config{Dir: filepath.Join(t.TempDir(), "missing")}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing directory")
	}
	if _, err := Load(context.Background(), db, Config{Dir: t.TempDir(), Pattern: "[unclosed"}, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "invalid pattern") {
		t.Fatalf("expected invalid pattern error, got %v", err)
	}
}
