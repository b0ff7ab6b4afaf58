package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationError_IsMatchesKind(t *testing.T) {
	err := NewError(KindDDL, "_orders__2021-01", "failed to create table", errors.New("syntax error"))
	wrapped := fmt.Errorf("window _orders__2021-01: %w", err)

	assert.ErrorIs(t, wrapped, ErrDDL)
	assert.NotErrorIs(t, wrapped, ErrBatchMove)
	assert.Equal(t, "_orders__2021-01: failed to create table: syntax error", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"direct", Errorf(KindLocked, "orders", "held by %s", "run-1"), KindLocked},
		{"wrapped", fmt.Errorf("window: %w", NewError(KindBatchMove, "orders", "failed", nil)), KindBatchMove},
		{"joined", errors.Join(errors.New("other"), ErrEmptyRange), KindEmptyRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
