package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Catalog errors
var (
	ErrNotFound   = errors.New("catalog record not found")
	ErrDuplicate  = errors.New("catalog record already exists")
	ErrForeignKey = errors.New("catalog record references a missing row")
)

// ConstraintError reports which catalog constraint a write violated, such
// as "collections.name" for a second collection with the same name
type ConstraintError struct {
	// Kind is ErrDuplicate or ErrForeignKey
	Kind       error
	Constraint string
	Cause      error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v (%s)", e.Kind, e.Constraint)
}

// Is matches the constraint kind, so errors.Is(err, ErrDuplicate) holds
func (e *ConstraintError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConstraintError) Unwrap() error {
	return e.Cause
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate checks if error is a duplicate error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key constraint violation
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// MapGormError maps GORM and SQLite errors to catalog errors
func MapGormError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &ConstraintError{Kind: ErrDuplicate, Constraint: failedConstraint(err), Cause: err}
		case sqlite3.ErrConstraintForeignKey:
			return &ConstraintError{Kind: ErrForeignKey, Cause: err}
		}
	}

	// Drivers that only surface the message
	errMsg := err.Error()
	if strings.Contains(errMsg, "UNIQUE constraint") {
		return &ConstraintError{Kind: ErrDuplicate, Constraint: failedConstraint(err), Cause: err}
	}
	if strings.Contains(errMsg, "FOREIGN KEY constraint") {
		return &ConstraintError{Kind: ErrForeignKey, Cause: err}
	}

	return err
}

// failedConstraint extracts "table.column" from SQLite's
// "UNIQUE constraint failed: table.column" message
func failedConstraint(err error) string {
	_, after, ok := strings.Cut(err.Error(), "constraint failed: ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(after)
}
