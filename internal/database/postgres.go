package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// Postgres is the dialect and catalog for PostgreSQL. Tables are resolved
// in current_schema().
type Postgres struct{}

// NewPostgresDatabase connects to PostgreSQL through the pgx stdlib driver.
func NewPostgresDatabase(connString string, pool PoolOptions, log *logrus.Logger) (*SQLDatabase, error) {
	return newSQLDatabase("pgx", connString, Postgres{}, pool, log)
}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdentifier(name string) string { return quoteWith(name, `"`) }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (p Postgres) InsertIgnore(table string, columns []string, rows int) string {
	return buildInsert(p, "INSERT INTO", table, columns, rows, " ON CONFLICT DO NOTHING")
}

func (p Postgres) DeleteByKeys(table string, key []string, keys int) string {
	return buildDeleteByKeys(p, table, key, keys)
}

// CreateTable clones src with LIKE, which carries defaults, constraints and
// indexes under names PostgreSQL generates for the new table.
func (p Postgres) CreateTable(table string, src *core.Schema) ([]string, error) {
	if src.TableName == "" {
		return nil, fmt.Errorf("schema has no source table name")
	}
	return []string{fmt.Sprintf(
		"CREATE TABLE %s (LIKE %s INCLUDING DEFAULTS INCLUDING CONSTRAINTS INCLUDING INDEXES)",
		p.QuoteIdentifier(table), p.QuoteIdentifier(src.TableName),
	)}, nil
}

func (Postgres) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tablename
		FROM pg_catalog.pg_tables
		WHERE schemaname = current_schema()
		ORDER BY tablename
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	return scanStrings(rows)
}

func (Postgres) tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_catalog.pg_tables
			WHERE schemaname = current_schema() AND tablename = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query table existence: %w", err)
	}
	return exists, nil
}

func (Postgres) describeTable(ctx context.Context, db *sql.DB, table string) (*core.Schema, error) {
	s := &core.Schema{TableName: table}

	rows, err := db.QueryContext(ctx, `
		SELECT a.attname,
		       pg_catalog.format_type(a.atttypid, a.atttypmod),
		       NOT a.attnotnull,
		       pg_catalog.pg_get_expr(d.adbin, d.adrelid)
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = current_schema()
		  AND c.relname = $1
		  AND c.relkind IN ('r', 'p')
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var column core.Column
		var colDefault sql.NullString
		if err := rows.Scan(&column.Name, &column.Type, &column.Nullable, &colDefault); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if colDefault.Valid {
			def := colDefault.String
			column.Default = &def
			column.DefaultIsExpression = true
		}
		s.Columns = append(s.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	if len(s.Columns) == 0 {
		return s, nil
	}

	indexRows, err := db.QueryContext(ctx, `
		SELECT ic.relname, a.attname, i.indisunique, i.indisprimary
		FROM pg_catalog.pg_index i
		JOIN pg_catalog.pg_class c ON c.oid = i.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_class ic ON ic.oid = i.indexrelid
		CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		WHERE n.nspname = current_schema() AND c.relname = $1
		ORDER BY ic.relname, k.ord
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer indexRows.Close()

	indexes := newIndexBuilder()
	for indexRows.Next() {
		var indexName, columnName string
		var unique, primary bool
		if err := indexRows.Scan(&indexName, &columnName, &unique, &primary); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indexes.add(indexName, columnName, unique, primary)
	}
	if err := indexRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}
	indexes.apply(s)

	return s, nil
}
