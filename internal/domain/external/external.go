// Package external describes failures of third-party services the storefront
// depends on, such as the payment gateway and blob storage.
package external

import "fmt"

// Error wraps a failed call to an external service.
type Error struct {
	Service string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil, otherwise an *Error for the given
// service operation.
func Wrap(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Service: service, Op: op, Err: err}
}
