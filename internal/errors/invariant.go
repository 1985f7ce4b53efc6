package errors

import "fmt"

// InvariantError is the panic value for bookkeeping states only a
// programming error can produce, such as a duplicate path in one edit or an
// epoch outside the running slow path's interval. It is never returned.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s violation: %s", KindInvariant, e.Message)
}

// Raise panics with an InvariantError.
func Raise(format string, args ...interface{}) {
	panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
}

// Enforce raises when cond is false.
func Enforce(cond bool, format string, args ...interface{}) {
	if !cond {
		Raise(format, args...)
	}
}
