package partition

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

func TestIsConnectivityFault(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("duplicate entry"), false},
		{"batch move", core.NewError(core.KindBatchMove, "orders", "failed", errors.New("deadlock")), false},
		{"cancelled", context.Canceled, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"bad conn", core.NewError(core.KindBatchMove, "orders", "failed", driver.ErrBadConn), true},
		{"conn done", sql.ErrConnDone, true},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"net", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectivityFault(tt.err))
		})
	}
}
