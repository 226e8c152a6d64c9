package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/sumandas0/catalog/pkg/utils"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		retryable bool
	}{
		{name: "deadline", err: context.DeadlineExceeded, wantCode: utils.CodeTimeout, retryable: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: sqlStateSerializationFailure}, wantCode: utils.CodeUnavailable, retryable: true},
		{name: "deadlock", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: sqlStateDeadlockDetected}), wantCode: utils.CodeUnavailable, retryable: true},
		{name: "unique violation stays permanent", err: &pgconn.PgError{Code: sqlStateUniqueViolation}, wantCode: ""},
		{name: "plain error", err: errors.New("boom"), wantCode: ""},
		{name: "app error passes through", err: utils.NewAppError(utils.CodeConflict, "held", nil), wantCode: utils.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := wrapError(tt.err, "update pipeline")
			assert.Equal(t, tt.wantCode, utils.Code(wrapped))
			assert.Equal(t, tt.retryable, utils.IsRetryable(wrapped))
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}

	assert.NoError(t, wrapError(nil, "anything"))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: sqlStateUniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: sqlStateDeadlockDetected}))
	assert.True(t, isNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, isNoRows(errors.New("other")))
}
