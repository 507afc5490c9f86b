package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), ClassCanceled},
		{"deadline", context.DeadlineExceeded, ClassRetryable},
		{"not found", gorm.ErrRecordNotFound, ClassNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, ClassConflict},
		{"deadlock", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), ClassRetryable},
		{"conn", &pgconn.PgError{Code: "08006"}, ClassUnavailable},
		{"syntax", &pgconn.PgError{Code: "42601"}, ClassError},
		{"extension", fmt.Errorf("%w: x", ErrVectorExtensionUnavailable), ClassUnavailable},
		{"plain", errors.New("boom"), ClassError},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: want=%q got=%q", tc.name, tc.want, got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failure should be retryable")
	}
	if IsRetryable(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation should not be retryable")
	}
}

func TestIsExtensionError(t *testing.T) {
	if !isExtensionError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "58P01"})) {
		t.Fatalf("undefined_file should be an extension error")
	}
	if isExtensionError(errors.New("no")) {
		t.Fatalf("plain error is not an extension error")
	}
}
