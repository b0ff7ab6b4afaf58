package core

import (
	"context"
)

// Rows is a forward-only cursor over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Transaction is a database transaction. A transaction must end with
// exactly one Commit or Rollback.
type Transaction interface {
	Commit() error
	Rollback() error
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Dialect renders the statements whose syntax differs between databases.
// Identifiers passed to a Dialect must already be validated.
type Dialect interface {
	// Name returns the dialect name ("mysql", "postgres", "sqlite").
	Name() string

	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind placeholder for the n-th argument (1-based).
	Placeholder(n int) string

	// InsertIgnore renders a multi-row insert that silently skips rows
	// colliding with an existing primary or unique key.
	InsertIgnore(table string, columns []string, rows int) string

	// DeleteByKeys renders a delete of rows whose primary key tuple is one
	// of keys bound tuples, numbering placeholders from 1.
	DeleteByKeys(table string, key []string, keys int) string

	// CreateTable renders the statements that create table as a clone of schema.
	CreateTable(table string, schema *Schema) ([]string, error)
}

// SchemaGateway reads and creates table definitions.
type SchemaGateway interface {
	// ListTables returns the names of all base tables.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable returns the schema of a table or ErrTableNotFound.
	DescribeTable(ctx context.Context, table string) (*Schema, error)

	// TableExists reports whether a table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// CreateTable creates table with the columns, primary key and indexes of schema.
	// Returns ErrTableExists when the table is already present.
	CreateTable(ctx context.Context, table string, schema *Schema) error
}

// Database is the connection used by the partitioner: queries, statements,
// transactions and schema access against one database.
type Database interface {
	SchemaGateway

	// Query executes a SELECT query and returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a non-query statement.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Dialect returns the SQL dialect of this database.
	Dialect() Dialect

	// Close closes the database connection.
	Close() error
}
