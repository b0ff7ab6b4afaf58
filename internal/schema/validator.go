package schema

import (
	"strings"
	"unicode/utf8"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// MaxIdentifierLength is the longest identifier accepted. MySQL caps table
// names at 64 characters, PostgreSQL at 63 bytes.
const MaxIdentifierLength = 63

// ValidateIdentifier rejects names that cannot be safely quoted.
func ValidateIdentifier(name string) error {
	if name == "" {
		return core.Errorf(core.KindInvalidIdentifier, "", "identifier cannot be empty")
	}
	if len(name) > MaxIdentifierLength {
		return core.Errorf(core.KindInvalidIdentifier, "", "identifier %q is longer than %d bytes", name, MaxIdentifierLength)
	}
	if !utf8.ValidString(name) || strings.ContainsRune(name, 0) {
		return core.Errorf(core.KindInvalidIdentifier, "", "identifier %q contains invalid characters", name)
	}
	if strings.TrimSpace(name) != name {
		return core.Errorf(core.KindInvalidIdentifier, "", "identifier %q has surrounding whitespace", name)
	}
	return nil
}

// SchemaValidator validates a source schema for migration.
type SchemaValidator struct {
	schema *core.Schema
	mapper *TypeMapper
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(schema *core.Schema, mapper *TypeMapper) *SchemaValidator {
	return &SchemaValidator{
		schema: schema,
		mapper: mapper,
	}
}

// Validate checks that the schema can be migrated: it has columns and a
// primary key whose columns all exist.
func (sv *SchemaValidator) Validate() error {
	if sv.schema == nil {
		return core.Errorf(core.KindTableNotFound, "", "schema cannot be nil")
	}
	if len(sv.schema.Columns) == 0 {
		return core.NewError(core.KindTableNotFound, sv.schema.TableName, "table has no columns", nil)
	}
	if len(sv.schema.PrimaryKey) == 0 {
		return core.NewError(core.KindMissingPrimaryKey, sv.schema.TableName, "table has no primary key", nil)
	}
	for i, pos := range sv.schema.PrimaryKeyPositions() {
		if pos < 0 {
			return core.Errorf(core.KindColumnNotFound, sv.schema.TableName,
				"primary key column %q not found in schema", sv.schema.PrimaryKey[i])
		}
	}
	return nil
}

// BindStamp validates the schema and returns a copy bound to stampColumn
// with its inferred domain.
func (sv *SchemaValidator) BindStamp(stampColumn string) (core.Schema, error) {
	if err := sv.Validate(); err != nil {
		return core.Schema{}, err
	}
	col, ok := sv.schema.Column(stampColumn)
	if !ok {
		return core.Schema{}, core.Errorf(core.KindColumnNotFound, sv.schema.TableName,
			"stamp column %q not found", stampColumn)
	}
	domain, err := sv.mapper.InferStampDomain(col.Type)
	if err != nil {
		return core.Schema{}, core.NewError(core.KindUnsupportedStampType, sv.schema.TableName,
			"unknown stamp column type", err)
	}
	bound := sv.schema.Bind(stampColumn, domain)
	bound.StampZoned = domain == core.StampTemporal && sv.mapper.IsZoned(col.Type)
	return bound, nil
}
