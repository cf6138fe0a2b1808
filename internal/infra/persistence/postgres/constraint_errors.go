package postgres

import (
	"context"
	"database/sql/driver"
	"net"
	"strings"

	"kitchenline/internal/domain/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Helper functions for PostgreSQL error checking
func isUniqueConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	return pgCode(err) == "23505"
}

func isNotNullConstraintViolation(err error) bool {
	if pgCode(err) == "23502" {
		return true
	}
	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "null value") || strings.Contains(errMsg, "not null")
}

// isTransient reports whether err is worth retrying: lost connections,
// timeouts, serialization failures and deadlocks.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	code := pgCode(err)
	switch {
	case code == "":
		return false
	case strings.HasPrefix(code, "08"): // connection_exception
		return true
	case code == "40001", code == "40P01": // serialization_failure, deadlock_detected
		return true
	case code == "57P01", code == "57P03": // admin_shutdown, cannot_connect_now
		return true
	case code == "53300": // too_many_connections
		return true
	default:
		return false
	}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}

// classify wraps transient failures with repository.ErrStoreUnavailable and
// everything else with msg.
func classify(err error, msg string) error {
	if isTransient(err) {
		return errors.Wrap(repository.Unavailable(err), msg)
	}

	return errors.Wrap(err, msg)
}
