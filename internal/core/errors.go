package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies migration failures.
type ErrorKind string

const (
	KindInvalidPartitionMode ErrorKind = "INVALID_PARTITION_MODE"
	KindInvalidIdentifier    ErrorKind = "INVALID_IDENTIFIER"
	KindTableNotFound        ErrorKind = "TABLE_NOT_FOUND"
	KindTableExists          ErrorKind = "TABLE_EXISTS"
	KindColumnNotFound       ErrorKind = "COLUMN_NOT_FOUND"
	KindMissingPrimaryKey    ErrorKind = "MISSING_PRIMARY_KEY"
	KindUnsupportedStampType ErrorKind = "UNSUPPORTED_STAMP_TYPE"
	KindEmptyRange           ErrorKind = "EMPTY_RANGE"
	KindDDL                  ErrorKind = "DDL"
	KindBatchMove            ErrorKind = "BATCH_MOVE"
	KindLocked               ErrorKind = "LOCKED"
)

// Sentinel errors, one per kind. A *MigrationError matches the sentinel of
// its kind with errors.Is.
var (
	ErrInvalidPartitionMode = &MigrationError{Kind: KindInvalidPartitionMode, Message: "invalid partition mode or cutoff"}
	ErrInvalidIdentifier    = &MigrationError{Kind: KindInvalidIdentifier, Message: "invalid identifier"}
	ErrTableNotFound        = &MigrationError{Kind: KindTableNotFound, Message: "table not found"}
	ErrTableExists          = &MigrationError{Kind: KindTableExists, Message: "table already exists"}
	ErrColumnNotFound       = &MigrationError{Kind: KindColumnNotFound, Message: "column not found"}
	ErrMissingPrimaryKey    = &MigrationError{Kind: KindMissingPrimaryKey, Message: "table has no primary key"}
	ErrUnsupportedStampType = &MigrationError{Kind: KindUnsupportedStampType, Message: "unsupported stamp column type"}
	ErrEmptyRange           = &MigrationError{Kind: KindEmptyRange, Message: "no rows older than cutoff"}
	ErrDDL                  = &MigrationError{Kind: KindDDL, Message: "partition table creation failed"}
	ErrBatchMove            = &MigrationError{Kind: KindBatchMove, Message: "batch move failed"}
	ErrLocked               = &MigrationError{Kind: KindLocked, Message: "table is locked by another migration"}
)

// MigrationError is the structured error returned by the partitioner.
type MigrationError struct {
	Kind    ErrorKind
	Table   string
	Message string
	Cause   error
}

// Error returns a single-line description.
func (e *MigrationError) Error() string {
	msg := e.Message
	if e.Table != "" {
		msg = fmt.Sprintf("%s: %s", e.Table, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MigrationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *MigrationError of the same kind.
func (e *MigrationError) Is(target error) bool {
	var t *MigrationError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError creates a MigrationError of the given kind.
func NewError(kind ErrorKind, table, message string, cause error) *MigrationError {
	return &MigrationError{Kind: kind, Table: table, Message: message, Cause: cause}
}

// Errorf creates a MigrationError of the given kind with a formatted message.
func Errorf(kind ErrorKind, table string, format string, args ...interface{}) *MigrationError {
	return &MigrationError{Kind: kind, Table: table, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a MigrationError.
func KindOf(err error) ErrorKind {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
