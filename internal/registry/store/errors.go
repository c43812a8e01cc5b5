package store

import "fmt"

// NotFoundError indicates the requested resource does not exist. Pagination
// never returns it: an absent discussion reads as an empty page. It is
// reserved for operations that address a single resource directly, and the
// HTTP layer already maps it to 404 so a store can start returning it
// without boundary changes.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ValidationError indicates the caller supplied invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnavailableError indicates the backing store could not be reached or timed
// out. The request may succeed on retry.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
