package schema

import (
	"fmt"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// Row is one source row projected in the table's declared column order,
// alongside its primary key tuple.
type Row struct {
	Values []interface{}
	Key    []interface{}
}

// Translator projects scanned database rows into Rows.
type Translator struct {
	schema       *core.Schema
	keyPositions []int
}

// NewTranslator creates a translator for schema. The schema must have
// passed SchemaValidator.Validate.
func NewTranslator(schema *core.Schema) *Translator {
	return &Translator{
		schema:       schema,
		keyPositions: schema.PrimaryKeyPositions(),
	}
}

// FromDB scans the current row of rows. The query must select the
// schema's columns in declared order.
func (t *Translator) FromDB(rows core.Rows) (Row, error) {
	if rows == nil {
		return Row{}, fmt.Errorf("rows cannot be nil")
	}

	values := make([]interface{}, len(t.schema.Columns))
	valuePtrs := make([]interface{}, len(values))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return Row{}, fmt.Errorf("failed to scan row: %w", err)
	}

	key := make([]interface{}, len(t.keyPositions))
	for i, pos := range t.keyPositions {
		if pos < 0 {
			return Row{}, fmt.Errorf("primary key column %q not in schema", t.schema.PrimaryKey[i])
		}
		key[i] = values[pos]
	}

	return Row{Values: values, Key: key}, nil
}
