package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// CustomError is the error shape returned by the HTTP middleware
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Kind classifies engine failures so callers can branch on them.
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindNotFound
	KindInvalidOperation
	KindIntegrityViolation
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindIntegrityViolation:
		return "integrity_violation"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// HTTPStatus maps a kind to the status code the API answers with
func (k Kind) HTTPStatus() int {
	switch k {
	case KindConflict:
		return 409
	case KindNotFound:
		return 404
	case KindInvalidOperation:
		return 400
	case KindIntegrityViolation:
		return 422
	case KindForbidden:
		return 403
	}
	return 500
}

// EngineError is a typed failure from the stores or the coordinator.
type EngineError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Conflict reports an optimistic-lock mismatch or a uniqueness collision.
// It is retryable after the caller re-reads state.
func Conflict(format string, args ...interface{}) error {
	return newError(KindConflict, nil, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, nil, format, args...)
}

func InvalidOperation(format string, args ...interface{}) error {
	return newError(KindInvalidOperation, nil, format, args...)
}

func IntegrityViolation(format string, args ...interface{}) error {
	return newError(KindIntegrityViolation, nil, format, args...)
}

// Forbidden reports an actor acting on a minisite it does not own
func Forbidden(format string, args ...interface{}) error {
	return newError(KindForbidden, nil, format, args...)
}

// Wrap attaches a kind to an underlying error
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return newError(kind, err, format, args...)
}

// KindOf returns the kind of err, or KindInternal when err carries none
func KindOf(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}

func IsConflict(err error) bool           { return err != nil && KindOf(err) == KindConflict }
func IsNotFound(err error) bool           { return err != nil && KindOf(err) == KindNotFound }
func IsInvalidOperation(err error) bool   { return err != nil && KindOf(err) == KindInvalidOperation }
func IsIntegrityViolation(err error) bool { return err != nil && KindOf(err) == KindIntegrityViolation }
func IsForbidden(err error) bool          { return err != nil && KindOf(err) == KindForbidden }

// FromDB classifies a database error. Missing rows become NotFound and
// unique violations become Conflict; anything else is returned as is.
func FromDB(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, err, format, args...)
	}
	if IsDuplicateKey(err) {
		return newError(KindConflict, err, format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsDuplicateKey reports whether err is a unique constraint violation on any supported dialect
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
