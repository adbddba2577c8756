package domain

import "fmt"

// ErrorType classifies why a check was not up.
type ErrorType string

const (
	ErrTimeout          ErrorType = "timeout"
	ErrConnection       ErrorType = "connection_error"
	ErrUnexpectedStatus ErrorType = "unexpected_status"
	ErrUnexpectedBody   ErrorType = "unexpected_body"
)

func (e ErrorType) String() string { return string(e) }

// Ptr returns a pointer to a copy of e, for CheckResult.ErrorType.
func (e ErrorType) Ptr() *ErrorType { return &e }

// ParseErrorType accepts only the four known tags.
func ParseErrorType(s string) (ErrorType, error) {
	switch e := ErrorType(s); e {
	case ErrTimeout, ErrConnection, ErrUnexpectedStatus, ErrUnexpectedBody:
		return e, nil
	}
	return "", fmt.Errorf("unknown error type %q", s)
}

// MarshalText rejects values outside the tagged set so they never reach
// storage or the snapshot file.
func (e ErrorType) MarshalText() ([]byte, error) {
	if _, err := ParseErrorType(string(e)); err != nil {
		return nil, err
	}
	return []byte(e), nil
}

func (e *ErrorType) UnmarshalText(b []byte) error {
	v, err := ParseErrorType(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
