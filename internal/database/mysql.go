package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// MySQL is the dialect and catalog for MySQL and MariaDB.
type MySQL struct{}

// NewMySQLDatabase connects to MySQL using a go-sql-driver DSN.
func NewMySQLDatabase(cfg *mysql.Config, pool PoolOptions, log *logrus.Logger) (*SQLDatabase, error) {
	cfg.ParseTime = true
	if pool.ConnectionTimeout > 0 {
		cfg.Timeout = pool.ConnectionTimeout
	}
	return newSQLDatabase("mysql", cfg.FormatDSN(), MySQL{}, pool, log)
}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdentifier(name string) string { return quoteWith(name, "`") }

func (MySQL) Placeholder(int) string { return "?" }

func (m MySQL) InsertIgnore(table string, columns []string, rows int) string {
	return buildInsert(m, "INSERT IGNORE INTO", table, columns, rows, "")
}

func (m MySQL) DeleteByKeys(table string, key []string, keys int) string {
	return buildDeleteByKeys(m, table, key, keys)
}

// CreateTable clones src with CREATE TABLE ... LIKE, which keeps column
// character sets and collations, generated columns, index prefix lengths
// and the table engine exactly as the source declares them.
func (m MySQL) CreateTable(table string, src *core.Schema) ([]string, error) {
	if src.TableName == "" {
		return nil, fmt.Errorf("schema has no source table name")
	}
	return []string{fmt.Sprintf("CREATE TABLE %s LIKE %s", m.QuoteIdentifier(table), m.QuoteIdentifier(src.TableName))}, nil
}

// mysqlExpressionDefault reports whether a COLUMN_DEFAULT value is an
// expression rather than a literal.
func mysqlExpressionDefault(def, extra string) bool {
	if strings.Contains(extra, "DEFAULT_GENERATED") {
		return true
	}
	upper := strings.ToUpper(def)
	return strings.HasPrefix(upper, "CURRENT_TIMESTAMP") || upper == "NOW()"
}

func (MySQL) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	return scanStrings(rows)
}

func (MySQL) tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
	`
	var n int
	if err := db.QueryRowContext(ctx, query, table).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query table existence: %w", err)
	}
	return n > 0, nil
}

func (MySQL) describeTable(ctx context.Context, db *sql.DB, table string) (*core.Schema, error) {
	s := &core.Schema{TableName: table}

	// Get columns
	query := `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var colName, colType, isNullable, extra string
		var colDefault sql.NullString
		if err := rows.Scan(&colName, &colType, &isNullable, &colDefault, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		column := core.Column{
			Name:     colName,
			Type:     colType,
			Nullable: isNullable == "YES",
			Extra:    extra,
		}
		if colDefault.Valid {
			def := colDefault.String
			column.Default = &def
			column.DefaultIsExpression = mysqlExpressionDefault(def, extra)
		}
		s.Columns = append(s.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	if len(s.Columns) == 0 {
		return s, nil
	}

	// Get indexes
	indexQuery := `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`
	indexRows, err := db.QueryContext(ctx, indexQuery, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer indexRows.Close()

	indexes := newIndexBuilder()
	for indexRows.Next() {
		var indexName, columnName string
		var nonUnique int
		if err := indexRows.Scan(&indexName, &columnName, &nonUnique); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indexes.add(indexName, columnName, nonUnique == 0, indexName == "PRIMARY")
	}
	if err := indexRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}
	indexes.apply(s)

	return s, nil
}
