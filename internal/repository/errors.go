package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("registro no encontrado")
	// ErrConflict is returned when the store rejects a write because of a
	// concurrent mutation: unique violation, serialization failure or deadlock.
	ErrConflict = errors.New("conflicto de concurrencia")
	// ErrReferenced is returned when a delete is blocked by a foreign key.
	ErrReferenced = errors.New("registro referenciado")
)

// PostgreSQL SQLSTATE codes mapped to ErrConflict.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgForeignKeyViolation  = "23503"
)

// translate maps driver errors to the package sentinels. Errors that are
// neither pass through unchanged so domain errors returned from inside a
// transaction keep their identity.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s (%s)", ErrConflict, pgErr.Message, pgErr.Code)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
		}
	}
	return err
}
