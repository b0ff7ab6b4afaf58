package partition

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/database"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
)

func openTestDB(t *testing.T) *database.SQLDatabase {
	t.Helper()
	path := filepath.Join(t.TempDir(), "partitioner.db")
	db, err := database.NewSQLiteDatabase(path, database.PoolOptions{MaxOpenConns: 4, MaxIdleConns: 2}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func exec(t *testing.T, db core.Database, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(context.Background(), query, args...)
	require.NoError(t, err)
}

// seedOrders creates an orders table with a DATETIME stamp and inserts
// one row per (id, created_at) pair.
func seedOrders(t *testing.T, db core.Database, rows map[int64]string) {
	t.Helper()
	exec(t, db, `CREATE TABLE orders (
		id INTEGER NOT NULL PRIMARY KEY,
		customer TEXT NOT NULL DEFAULT 'anon',
		created_at DATETIME NOT NULL,
		note TEXT
	)`)
	exec(t, db, `CREATE INDEX idx_orders_created ON orders (created_at)`)
	for id, stamp := range rows {
		exec(t, db, `INSERT INTO orders (id, customer, created_at) VALUES (?, ?, ?)`, id, "c", stamp)
	}
}

// ids returns the primary keys stored in table, ascending.
func ids(t *testing.T, db core.Database, table string) []int64 {
	t.Helper()
	rows, err := db.Query(context.Background(), `SELECT id FROM "`+table+`" ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		out = append(out, id)
	}
	require.NoError(t, rows.Err())
	return out
}

func tableExists(t *testing.T, db core.Database, table string) bool {
	t.Helper()
	ok, err := db.TableExists(context.Background(), table)
	require.NoError(t, err)
	return ok
}

// faultyDB fails chosen DELETE statements issued inside transactions.
type faultyDB struct {
	*database.SQLDatabase

	mu      sync.Mutex
	deletes int
	failOn  map[int]bool // 1-based DELETE call numbers; nil fails none
	failAll bool
	err     error

	// cancelOnDelete is called before each DELETE, which then runs normally.
	cancelOnDelete context.CancelFunc
	// hideInserted makes INSERT results fail RowsAffected.
	hideInserted bool
}

func (f *faultyDB) BeginTx(ctx context.Context) (core.Transaction, error) {
	tx, err := f.SQLDatabase.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Transaction: tx, db: f}, nil
}

func (f *faultyDB) shouldFail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return f.failAll || f.failOn[f.deletes]
}

type faultyTx struct {
	core.Transaction
	db *faultyDB
}

func (tx *faultyTx) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if strings.HasPrefix(query, "DELETE") {
		if tx.db.cancelOnDelete != nil {
			tx.db.cancelOnDelete()
		} else if tx.db.shouldFail() {
			return nil, tx.db.err
		}
	}
	res, err := tx.Transaction.Exec(ctx, query, args...)
	if err == nil && tx.db.hideInserted && strings.HasPrefix(query, "INSERT") {
		return unreportedResult{}, nil
	}
	return res, err
}

// unreportedResult is a driver result without affected-row counts.
type unreportedResult struct{}

func (unreportedResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (unreportedResult) RowsAffected() (int64, error) { return 0, errors.New("not supported") }
