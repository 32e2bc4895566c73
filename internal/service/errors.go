package service

import (
	"context"
	"errors"
	"time"

	"autopartes/internal/apierror"
	"autopartes/internal/repository"

	"github.com/rs/zerolog/log"
)

const timeLayout = time.RFC3339

// storeError passes domain errors through and classifies everything else
// coming from the repositories.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, repository.ErrConflict) {
		return apierror.Conflict(err)
	}
	return apierror.Store(err)
}

// lookupError maps a repository miss to the given not-found sentinel.
func lookupError(err error, notFound *apierror.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return storeError(err)
}

// duplicateError reports a unique-key violation on create/update.
func duplicateError(err error, msg string) error {
	if errors.Is(err, repository.ErrConflict) {
		return apierror.ErrDuplicate.WithMessage(msg)
	}
	return storeError(err)
}

// withRetry runs fn and retries it once when it fails with a concurrency
// conflict. A second conflict is returned to the caller.
func withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, apierror.ErrConflict) || ctx.Err() != nil {
		return err
	}
	log.Warn().Err(err).Str("op", op).Msg("conflicto de concurrencia, reintentando")
	return fn()
}

func formatTime(t time.Time) string { return t.Format(timeLayout) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func normalizePage(page, limit, defLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defLimit
	}
	return page, limit
}

// parseDia parses YYYY-MM-DD as a business-local calendar day and returns
// its [start, end) bounds. An empty string is today.
func parseDia(fecha string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	var day time.Time
	if fecha == "" {
		n := now.In(loc)
		day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	} else {
		d, err := time.ParseInLocation("2006-01-02", fecha, loc)
		if err != nil {
			return time.Time{}, time.Time{}, apierror.Validation("Fecha inválida, use AAAA-MM-DD", map[string]string{"fecha": "datetime"})
		}
		day = d
	}
	return day, day.AddDate(0, 0, 1), nil
}
