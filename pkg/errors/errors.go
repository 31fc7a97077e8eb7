package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// API errors
	ErrRequestFailed    = errors.New("request failed")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrMalformedBody    = errors.New("malformed response body")

	// WeChat errors
	ErrStatusCheckFailed = errors.New("status check failed")
	ErrLoginRejected     = errors.New("login rejected")
	ErrEmptyQRCode       = errors.New("empty qr code payload")

	// Input errors
	ErrTitleRequired    = errors.New("title is required")
	ErrChatNameRequired = errors.New("chat name is required")
	ErrOutOfRange       = errors.New("value out of range")

	// Local store errors
	ErrSettingNotFound = errors.New("setting not found")
	ErrInvalidSetting  = errors.New("invalid setting value")
)

// TransportError is a network, timeout, or server-side (5xx) failure.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a response that arrived but did not have the expected shape
// or carried a non-success status.
type ProtocolError struct {
	Endpoint string
	Status   string
	Message  string
	Err      error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %v (status=%q, message=%q)", e.Endpoint, e.Err, e.Status, e.Message)
	case e.Status != "":
		return fmt.Sprintf("%s: %v (status=%q)", e.Endpoint, e.Err, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// InputError is a user-supplied value that failed a required-field or range check.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsInput reports whether err is (or wraps) an InputError.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
