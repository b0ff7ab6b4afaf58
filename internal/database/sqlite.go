package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// SQLite is the dialect and catalog for SQLite databases.
type SQLite struct{}

// NewSQLiteDatabase opens the SQLite database file at path in WAL mode so
// the source cursor and batch transactions can run on separate connections.
func NewSQLiteDatabase(path string, pool PoolOptions, log *logrus.Logger) (*SQLDatabase, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_journal_mode=WAL&_busy_timeout=5000"
	return newSQLDatabase("sqlite3", dsn, SQLite{}, pool, log)
}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdentifier(name string) string { return quoteWith(name, `"`) }

func (SQLite) Placeholder(int) string { return "?" }

func (s SQLite) InsertIgnore(table string, columns []string, rows int) string {
	return buildInsert(s, "INSERT OR IGNORE INTO", table, columns, rows, "")
}

func (s SQLite) DeleteByKeys(table string, key []string, keys int) string {
	return buildDeleteByKeys(s, table, key, keys)
}

// CreateTable renders CREATE TABLE followed by one CREATE INDEX per
// secondary index. Index names live in a database wide namespace, so they
// are prefixed with the new table name.
func (s SQLite) CreateTable(table string, src *core.Schema) ([]string, error) {
	if len(src.Columns) == 0 {
		return nil, fmt.Errorf("schema of %s has no columns", src.TableName)
	}

	defs := make([]string, 0, len(src.Columns)+1)
	for _, col := range src.Columns {
		def := s.QuoteIdentifier(col.Name)
		if col.Type != "" {
			def += " " + col.Type
		}
		if !col.Nullable {
			def += " NOT NULL"
		}
		if col.Default != nil {
			// table_info reports expressions without their parentheses.
			if col.DefaultIsExpression {
				def += " DEFAULT (" + *col.Default + ")"
			} else {
				def += " DEFAULT " + quoteLiteral(*col.Default, false)
			}
		}
		defs = append(defs, def)
	}
	if len(src.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(s, src.PrimaryKey)))
	}

	statements := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", s.QuoteIdentifier(table), strings.Join(defs, ",\n  "))}
	for _, index := range src.Indexes {
		if index.Primary {
			continue
		}
		kind := "INDEX"
		if index.Unique {
			kind = "UNIQUE INDEX"
		}
		statements = append(statements, fmt.Sprintf("CREATE %s %s ON %s (%s)",
			kind, s.QuoteIdentifier(table+"__"+index.Name), s.QuoteIdentifier(table), quoteList(s, index.Columns)))
	}
	return statements, nil
}

func (SQLite) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	return scanStrings(rows)
}

func (SQLite) tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query table existence: %w", err)
	}
	return n > 0, nil
}

func (s SQLite) describeTable(ctx context.Context, db *sql.DB, table string) (*core.Schema, error) {
	out := &core.Schema{TableName: table}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", s.QuoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	type pkColumn struct {
		name string
		seq  int
	}
	var pk []pkColumn
	for rows.Next() {
		var cid, notNull, pkSeq int
		var name, colType string
		var colDefault sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &colDefault, &pkSeq); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		column := core.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0 && pkSeq == 0,
		}
		if colDefault.Valid {
			def := colDefault.String
			column.Default = &def
			column.DefaultIsExpression = true
		}
		if pkSeq > 0 {
			pk = append(pk, pkColumn{name: name, seq: pkSeq})
		}
		out.Columns = append(out.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	if len(out.Columns) == 0 {
		return out, nil
	}

	out.PrimaryKey = make([]string, len(pk))
	for _, c := range pk {
		out.PrimaryKey[c.seq-1] = c.name
	}
	if len(pk) > 0 {
		out.Indexes = append(out.Indexes, core.Index{
			Name:    "PRIMARY",
			Columns: append([]string(nil), out.PrimaryKey...),
			Unique:  true,
			Primary: true,
		})
	}

	indexes, err := s.secondaryIndexes(ctx, db, table)
	if err != nil {
		return nil, err
	}
	out.Indexes = append(out.Indexes, indexes...)
	return out, nil
}

func (s SQLite) secondaryIndexes(ctx context.Context, db *sql.DB, table string) ([]core.Index, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", s.QuoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var indexes []core.Index
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		if origin == "pk" {
			continue
		}
		indexes = append(indexes, core.Index{Name: name, Unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating indexes: %w", err)
	}
	rows.Close()

	for i := range indexes {
		cols, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", s.QuoteIdentifier(indexes[i].Name)))
		if err != nil {
			return nil, fmt.Errorf("failed to query index columns: %w", err)
		}
		for cols.Next() {
			var seqno, cid int
			var name sql.NullString
			if err := cols.Scan(&seqno, &cid, &name); err != nil {
				cols.Close()
				return nil, fmt.Errorf("failed to scan index column: %w", err)
			}
			indexes[i].Columns = append(indexes[i].Columns, name.String)
		}
		err = cols.Err()
		cols.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating index columns: %w", err)
		}
	}

	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })
	return indexes, nil
}
