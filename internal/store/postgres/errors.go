package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sumandas0/catalog/pkg/utils"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// wrapError tags failures the caller may retry so the resilience layer can
// tell them apart from permanent ones.
func wrapError(err error, action string) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return utils.NewAppError(utils.CodeTimeout, "failed to "+action, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected {
			return utils.NewAppError(utils.CodeUnavailable, "failed to "+action, err)
		}
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if pgconn.SafeToRetry(err) {
		return utils.NewAppError(utils.CodeUnavailable, "failed to "+action, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return utils.NewAppError(utils.CodeUnavailable, "failed to "+action, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
