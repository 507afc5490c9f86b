package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrVectorExtensionUnavailable means the pgvector extension could not be created.
var ErrVectorExtensionUnavailable = errors.New("pgvector extension unavailable")

// Error classes used as log fields and metric labels.
const (
	ClassConflict    = "conflict"
	ClassRetryable   = "retryable"
	ClassNotFound    = "not_found"
	ClassCanceled    = "canceled"
	ClassUnavailable = "unavailable"
	ClassError       = "error"
)

// Classify maps a storage error to a coarse class. nil maps to "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassRetryable
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ClassNotFound
	case errors.Is(err, ErrVectorExtensionUnavailable):
		return ClassUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch code := strings.TrimSpace(pgErr.Code); {
		case code == "23505":
			return ClassConflict // unique_violation
		case code == "40001", code == "40P01", code == "55P03":
			return ClassRetryable // serialization/deadlock/lock_not_available
		case strings.HasPrefix(code, "08"), code == "57P01", code == "53300":
			return ClassUnavailable // connection exceptions, admin shutdown, too many connections
		}
		return ClassError
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ClassUnavailable
	}
	return ClassError
}

// IsRetryable reports whether a storage error may succeed on a later attempt.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassRetryable, ClassUnavailable:
		return true
	}
	return false
}

func isExtensionError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// insufficient_privilege, undefined_file (extension not installed), feature_not_supported
	switch pgErr.Code {
	case "42501", "58P01", "0A000":
		return true
	}
	return false
}
