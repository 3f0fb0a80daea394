package domain

import "fmt"

// Error types for consistent error handling across the API.

// ErrTenantViolation indicates an operation was attempted without a valid
// effective store id. It is raised before any I/O.
type ErrTenantViolation struct {
	Operation string
	StoreID   string
}

func (e *ErrTenantViolation) Error() string {
	if e.StoreID == "" {
		return fmt.Sprintf("tenant violation: %s requires a store context", e.Operation)
	}
	return fmt.Sprintf("tenant violation: %s not allowed in store context %q", e.Operation, e.StoreID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrPersistence indicates the store of record rejected or failed a call.
type ErrPersistence struct {
	Operation string
	Err       error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence error [%s]: %v", e.Operation, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates a write lost a compare-and-swap race.
type ErrConflict struct {
	Resource string
	ID       string
	Version  int
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (expected version %d)", e.Resource, e.ID, e.Version)
}

// ErrInvalidTransition indicates a status change that the lifecycle table rejects.
type ErrInvalidTransition struct {
	Resource string
	From     string
	To       string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Resource, e.From, e.To)
}

// ErrForbidden indicates the actor lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrDuplicate indicates a unique key is already taken.
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate: %s", e.Key)
}
