package pgrepo

import (
	"errors"
	"fmt"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode      = "23505"
	checkViolationCode       = "23514"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// convertErr normalises a driver error for the service layer.
//   - pgx.ErrNoRows becomes domain.ErrRecordNotFound;
//   - unique and check violations become domain.ErrDuplicateKey and domain.ErrCheckViolation;
//   - serialization failures and deadlocks become domain.ErrVersionConflict so the caller may retry;
//   - anything else is domain.ErrUnknown with the original message.
func convertErr(err error, format string, formatArgs ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, formatArgs...)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("[repository/%s] %w", msg, domain.ErrRecordNotFound)
	}

	var pgErr *pgconn.PgError
	errType := domain.ErrUnknown

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			errType = domain.ErrDuplicateKey
		case checkViolationCode:
			errType = domain.ErrCheckViolation
		case serializationFailureCode, deadlockDetectedCode:
			errType = domain.ErrVersionConflict
		}
	}

	return fmt.Errorf("[repository/%s] %w: %s", msg, errType, err.Error())
}

// convertCASErr is convertErr for guarded updates: no returned row means the guard did not match.
func convertCASErr(err error, format string, formatArgs ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("[repository/%s] %w", fmt.Sprintf(format, formatArgs...), domain.ErrVersionConflict)
	}
	return convertErr(err, format, formatArgs...)
}
