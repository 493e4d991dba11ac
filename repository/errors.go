package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"VibingStorage/logger"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means a lookup by id, title or name matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrValidation means a filter, page or patch value is outside its domain.
	ErrValidation = errors.New("validation failed")
)

// Kind classifies a PersistenceError.
type Kind int

const (
	KindQuery Kind = iota
	KindTimeout
	KindConnection
	KindConstraint
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindConstraint:
		return "constraint"
	default:
		return "query"
	}
}

// PersistenceError is returned when the store rejected or could not complete a statement.
type PersistenceError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsPersistence reports whether err is a PersistenceError, returning it when so.
func IsPersistence(err error) (*PersistenceError, bool) {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func notFound(what string, key any) error {
	return fmt.Errorf("%s %v: %w", what, key, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// wrapErr turns a driver or gorm error into the taxonomy above. Errors that are
// already classified pass through untouched.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	if _, ok := IsPersistence(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	pe := &PersistenceError{Op: op, Kind: classify(err), Err: err}
	logger.Warn("persistence failure",
		logger.String("op", op),
		logger.String("kind", pe.Kind.String()),
		logger.ErrorField(err))
	return pe
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return KindConnection
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindConstraint
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1451, 1452: // duplicate entry, foreign key parent/child
			return KindConstraint
		case 3024: // max execution time exceeded
			return KindTimeout
		case 1040, 1203: // too many connections
			return KindConnection
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "constraint failed"), strings.Contains(msg, "duplicate"):
		return KindConstraint
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "database is closed"), strings.Contains(msg, "connection refused"):
		return KindConnection
	}
	return KindQuery
}
