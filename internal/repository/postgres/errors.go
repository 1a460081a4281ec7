// internal/repository/postgres/errors.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	xerrors "billing-service/internal/pkg/errors"
)

const uniqueViolation = "23505"

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// mapError translates driver errors into the application sentinels.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, xerrors.ErrNotFound)
	case IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, xerrors.ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", op, xerrors.ErrStorage, err)
	}
}
