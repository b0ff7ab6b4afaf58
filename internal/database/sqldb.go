package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
	"github.com/rzpsarthak13/table-partitioner/internal/schema"
)

// minOpenConns is one connection for the streaming source cursor plus one
// for the batch transaction running while the cursor is open.
const minOpenConns = 2

// PoolOptions configures the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration
}

// catalog reads table metadata in a dialect specific way.
type catalog interface {
	listTables(ctx context.Context, db *sql.DB) ([]string, error)
	tableExists(ctx context.Context, db *sql.DB, table string) (bool, error)
	describeTable(ctx context.Context, db *sql.DB, table string) (*core.Schema, error)
}

// dialectCatalog is implemented by each supported database flavour.
type dialectCatalog interface {
	core.Dialect
	catalog
}

// SQLDatabase implements core.Database on top of database/sql.
type SQLDatabase struct {
	db      *sql.DB
	flavour dialectCatalog
	log     *logrus.Entry
	closed  atomic.Bool
}

var _ core.Database = (*SQLDatabase)(nil)

// newSQLDatabase opens driverName with dsn, configures the pool and pings.
func newSQLDatabase(driverName, dsn string, flavour dialectCatalog, pool PoolOptions, log *logrus.Logger) (*SQLDatabase, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	maxOpen := pool.MaxOpenConns
	if maxOpen > 0 && maxOpen < minOpenConns {
		maxOpen = minOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	timeout := pool.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLDatabase{
		db:      db,
		flavour: flavour,
		log:     logger.Component(log, "database").WithField("dialect", flavour.Name()),
	}, nil
}

// Dialect returns the SQL dialect of this database.
func (d *SQLDatabase) Dialect() core.Dialect {
	return d.flavour
}

// Query executes a SELECT query and returns rows.
func (d *SQLDatabase) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	d.log.WithField("args", len(args)).Debugf("executing query: %s", query)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (d *SQLDatabase) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	d.log.WithField("args", len(args)).Debugf("executing statement: %s", query)
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return result, nil
}

// BeginTx starts a new transaction.
func (d *SQLDatabase) BeginTx(ctx context.Context) (core.Transaction, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx, log: d.log}, nil
}

// ListTables returns all base table names, sorted.
func (d *SQLDatabase) ListTables(ctx context.Context) ([]string, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	return d.flavour.listTables(ctx, d.db)
}

// TableExists reports whether table exists.
func (d *SQLDatabase) TableExists(ctx context.Context, table string) (bool, error) {
	if d.closed.Load() {
		return false, fmt.Errorf("database is closed")
	}
	if err := schema.ValidateIdentifier(table); err != nil {
		return false, err
	}
	return d.flavour.tableExists(ctx, d.db, table)
}

// DescribeTable reads the columns, primary key and indexes of table.
func (d *SQLDatabase) DescribeTable(ctx context.Context, table string) (*core.Schema, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	if err := schema.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	s, err := d.flavour.describeTable(ctx, d.db, table)
	if err != nil {
		return nil, err
	}
	if len(s.Columns) == 0 {
		return nil, core.NewError(core.KindTableNotFound, table, "table not found", nil)
	}
	d.log.WithFields(logger.Fields{
		"table":       table,
		"columns":     len(s.Columns),
		"primary_key": s.PrimaryKey,
		"indexes":     len(s.Indexes),
	}).Debug("described table")
	return s, nil
}

// CreateTable creates table as a structural clone of src.
func (d *SQLDatabase) CreateTable(ctx context.Context, table string, src *core.Schema) error {
	if err := schema.ValidateIdentifier(table); err != nil {
		return err
	}
	exists, err := d.TableExists(ctx, table)
	if err != nil {
		return core.NewError(core.KindDDL, table, "failed to check table existence", err)
	}
	if exists {
		return core.NewError(core.KindTableExists, table, "table already exists", nil)
	}

	statements, err := d.flavour.CreateTable(table, src)
	if err != nil {
		return core.NewError(core.KindDDL, table, "failed to render table definition", err)
	}
	for _, stmt := range statements {
		if _, err := d.Exec(ctx, stmt); err != nil {
			return core.NewError(core.KindDDL, table, "failed to create table", err)
		}
	}
	d.log.WithFields(logger.Fields{"table": table, "source": src.TableName}).Info("created partition table")
	return nil
}

// Close closes the database connection.
func (d *SQLDatabase) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx  *sql.Tx
	log *logrus.Entry
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	t.log.WithField("args", len(args)).Debugf("executing statement in transaction: %s", query)
	return t.tx.ExecContext(ctx, query, args...)
}

// scanStrings collects a single string column from rows.
func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// indexBuilder groups (index, column) rows into ordered core.Index values.
type indexBuilder struct {
	order   []string
	indexes map[string]*core.Index
}

func newIndexBuilder() *indexBuilder {
	return &indexBuilder{indexes: make(map[string]*core.Index)}
}

func (b *indexBuilder) add(name, column string, unique, primary bool) {
	if index, ok := b.indexes[name]; ok {
		index.Columns = append(index.Columns, column)
		return
	}
	b.order = append(b.order, name)
	b.indexes[name] = &core.Index{
		Name:    name,
		Columns: []string{column},
		Unique:  unique,
		Primary: primary,
	}
}

// apply appends the collected indexes to s and sets its primary key.
func (b *indexBuilder) apply(s *core.Schema) {
	for _, name := range b.order {
		index := b.indexes[name]
		if index.Primary {
			s.PrimaryKey = append([]string(nil), index.Columns...)
		}
		s.Indexes = append(s.Indexes, *index)
	}
}
