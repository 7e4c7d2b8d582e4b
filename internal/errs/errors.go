package errs

import "errors"

// Error kinds shared by the gateway client, the store and the dispatch service.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrStore         = errors.New("store error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Validation returns an error that reads as msg and matches ErrValidation.
func Validation(msg string) error {
	return &kindError{kind: ErrValidation, msg: msg}
}

// Configuration returns an error that reads as msg and matches ErrConfiguration.
func Configuration(msg string) error {
	return &kindError{kind: ErrConfiguration, msg: msg}
}
