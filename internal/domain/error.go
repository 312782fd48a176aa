package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrPlanNotFound       = errors.New("subscription plan not found")
	ErrDuplicatePending   = errors.New("buyer already has an open pending request")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// AlreadyProcessedError reports a state-transition guard violation on a
// pending request or subscription. It is a normal outcome, not an exceptional
// one: the caller is told which terminal status the entity already holds.
type AlreadyProcessedError struct {
	Status string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("already processed: status is %q", e.Status)
}

// IsAlreadyProcessed reports whether err wraps an AlreadyProcessedError.
func IsAlreadyProcessed(err error) bool {
	var ap *AlreadyProcessedError
	return errors.As(err, &ap)
}
