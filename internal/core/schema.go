package core

// StampDomain is the value domain of a stamp column.
type StampDomain string

const (
	// StampInteger covers numeric stamps holding epoch seconds.
	StampInteger StampDomain = "INTEGER"

	// StampTemporal covers DATE, DATETIME and TIMESTAMP stamps.
	StampTemporal StampDomain = "TEMPORAL"
)

// Schema represents the structure of a database table.
// A Schema is read fresh on every run and never mutated afterwards;
// Bind returns a copy rather than modifying the receiver.
type Schema struct {
	// TableName is the name of the table.
	TableName string

	// PrimaryKey lists the primary key columns in key order.
	PrimaryKey []string

	// Columns contains all column definitions for the table in declared order.
	Columns []Column

	// Indexes contains all secondary and primary index definitions.
	Indexes []Index

	// StampColumn is the column that decides partition membership.
	// Empty until the schema is bound to a stamp column.
	StampColumn string

	// StampDomain is the inferred domain of StampColumn.
	StampDomain StampDomain

	// StampZoned reports that a temporal StampColumn stores instants
	// (timestamptz) instead of wall-clock values.
	StampZoned bool
}

// Column represents a single column in a database table.
type Column struct {
	// Name is the column name.
	Name string

	// Type is the full declared database type (e.g., "int(10) unsigned", "datetime(6)").
	Type string

	// Nullable indicates whether the column can contain NULL values.
	Nullable bool

	// Default is the default value or expression, nil when the column has none.
	Default *string

	// DefaultIsExpression reports whether Default must be emitted verbatim
	// rather than as a quoted literal.
	DefaultIsExpression bool

	// Extra holds dialect specific attributes such as "auto_increment".
	Extra string
}

// Index represents a database index.
type Index struct {
	// Name is the index name.
	Name string

	// Columns are the column names that make up this index.
	Columns []string

	// Unique indicates whether this is a unique index.
	Unique bool

	// Primary indicates whether this is the primary key index.
	Primary bool
}

// ColumnNames returns the column names in declared order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// PrimaryKeyPositions returns the positions of the primary key columns
// within Columns, in key order. Missing columns are reported as -1.
func (s *Schema) PrimaryKeyPositions() []int {
	positions := make([]int, len(s.PrimaryKey))
	for i, pk := range s.PrimaryKey {
		positions[i] = -1
		for j, col := range s.Columns {
			if col.Name == pk {
				positions[i] = j
				break
			}
		}
	}
	return positions
}

// Bind returns a copy of the schema bound to the given stamp column and domain.
func (s Schema) Bind(stampColumn string, domain StampDomain) Schema {
	bound := s
	bound.Columns = append([]Column(nil), s.Columns...)
	bound.Indexes = append([]Index(nil), s.Indexes...)
	bound.PrimaryKey = append([]string(nil), s.PrimaryKey...)
	bound.StampColumn = stampColumn
	bound.StampDomain = domain
	return bound
}
