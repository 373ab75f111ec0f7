package pgstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"finapi/pkg/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNumericOutOfRange   = "22003"
)

// translate maps gorm and driver errors to apperr kinds. resource names the
// entity in caller-facing messages.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, resource+" already exists", err)
		case pgErr.Code == pgForeignKeyViolation:
			return apperr.Wrap(apperr.KindReferentialConflict, resource+" is still referenced or references a missing row", err)
		case pgErr.Code == pgCheckViolation, pgErr.Code == pgNumericOutOfRange:
			return apperr.Wrap(apperr.KindValidation, resource+" has an out of range value", err)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return apperr.Wrap(apperr.KindUnavailable, "database unavailable", err)
		}
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUnavailable, "database unavailable", err)
	}
	return fmt.Errorf("%s: %w", resource, err)
}
