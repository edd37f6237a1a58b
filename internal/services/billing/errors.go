package billing

import (
	"errors"
	"fmt"
)

// ValidationError is returned before anything is read from or written to the ledger.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// PersistenceError means the ledger unit of work was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError never fails a decision; it is reported as a warning.
type NotificationError struct {
	Phone string
	Err   error
}

func (e *NotificationError) Error() string {
	if e.Phone == "" {
		return fmt.Sprintf("notification failed: %v", e.Err)
	}
	return fmt.Sprintf("notification to %s failed: %v", e.Phone, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
