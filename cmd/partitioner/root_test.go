package main

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/table-partitioner/pkg/partitioner"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, created_at DATETIME NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders (id, created_at) VALUES
		(1, '2021-01-15 10:00:00'), (2, '2021-02-20 09:00:00'), (3, '2021-03-01 00:00:00')`)
	require.NoError(t, err)
	return "sqlite://" + path
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func countRows(t *testing.T, url, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", url[len("sqlite://"):])
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestRoot_DryRun(t *testing.T) {
	url := seedDatabase(t)

	out, _, err := run(t, "--dry-run", url, "orders", "YEAR_MONTH", "created_at", "2021-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "_orders__2021-01")
	assert.Contains(t, out, "_orders__2021-02")
	assert.Contains(t, out, "rows before 2021-03-01 are eligible")
	assert.Equal(t, 3, countRows(t, url, "orders"))
}

func TestRoot_Migrate(t *testing.T) {
	url := seedDatabase(t)

	out, _, err := run(t, "--batch-size", "1", "--lock", "none", "--events", "none",
		url, "orders", "YEAR_MONTH", "created_at", "2021-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "moved 2 rows")
	assert.Equal(t, 1, countRows(t, url, "orders"))
	assert.Equal(t, 1, countRows(t, url, "_orders__2021-01"))

	out, _, err = run(t, url, "orders", "YEAR_MONTH", "created_at", "2021-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing older than 2021-03-01")
}

func TestRoot_Errors(t *testing.T) {
	url := seedDatabase(t)

	_, _, err := run(t, url, "orders", "YEAR_MONTH", "created_at")
	assert.Error(t, err)

	_, _, err = run(t, url, "orders", "WEEK", "created_at", "2021-03-15")
	assert.ErrorIs(t, err, partitioner.ErrInvalidPartitionMode)

	_, _, err = run(t, url, "customers", "YEAR", "created_at", "2021-03-15")
	assert.ErrorIs(t, err, partitioner.ErrTableNotFound)

	_, _, err = run(t, "--batch-size", "0", url, "orders", "YEAR", "created_at", "2021-03-15")
	assert.ErrorContains(t, err, "batch_size")

	_, _, err = run(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), url, "orders", "YEAR", "created_at", "2021-03-15")
	assert.Error(t, err)
}

func TestRoot_InvalidRequestDoesNotOpenDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.db")
	url := "sqlite://" + path

	_, _, err := run(t, url, "orders", "DECADE", "created_at", "2021-01-01")
	assert.ErrorIs(t, err, partitioner.ErrInvalidPartitionMode)

	_, _, err = run(t, url, "orders", "YEAR", "created_at", "someday")
	assert.ErrorIs(t, err, partitioner.ErrInvalidPartitionMode)

	_, _, err = run(t, url, " orders", "YEAR", "created_at", "2021-01-01")
	assert.ErrorIs(t, err, partitioner.ErrInvalidIdentifier)

	assert.NoFileExists(t, path)
}

func TestTablesCommand(t *testing.T) {
	url := seedDatabase(t)

	out, _, err := run(t, "tables", url)
	require.NoError(t, err)
	assert.Equal(t, "orders\n", out)
}

func TestProgressSink(t *testing.T) {
	var buf bytes.Buffer
	sink := newProgressSink(&buf)
	ctx := context.Background()

	require.NoError(t, sink.Publish(ctx, partitioner.Event{Type: partitioner.EventWindowStarted, Partition: "_orders__2021-01", Pending: 3}))
	require.NoError(t, sink.Publish(ctx, partitioner.Event{Type: partitioner.EventBatchMoved, Rows: 2}))
	require.NoError(t, sink.Publish(ctx, partitioner.Event{Type: partitioner.EventBatchFailed, Rows: 1}))
	require.NoError(t, sink.Publish(ctx, partitioner.Event{Type: partitioner.EventWindowDone}))
	require.NoError(t, sink.Close())

	assert.Contains(t, buf.String(), "_orders__2021-01")
}
