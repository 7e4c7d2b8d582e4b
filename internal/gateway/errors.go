package gateway

import (
	"errors"
	"fmt"
)

// Kind separates failures of the HTTP exchange from errors reported by SMSC itself.
type Kind string

const (
	KindTransport Kind = "transport"
	KindAPI       Kind = "api"
)

var ErrCircuitOpen = errors.New("gateway circuit open")

// Error is returned for every failed gateway exchange.
type Error struct {
	Kind       Kind
	Method     string // send|status
	StatusCode int    // transport kind, non-2xx responses
	Code       int    // api kind, SMSC error_code
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindAPI:
		return e.Message
	case e.StatusCode != 0:
		return fmt.Sprintf("smsc %s: http status %d", e.Method, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("smsc %s: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("smsc %s: %s", e.Method, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-kind gateway error.
func IsTransport(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == KindTransport
}

// IsAPI reports whether err carries an error returned by SMSC.
func IsAPI(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == KindAPI
}
