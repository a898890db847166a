package uv

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrResource the OS failed to allocate a poller, socket or descriptor.
	ErrResource = errors.New("uv: resource exhausted")
	// ErrAddress bind failed: address in use, invalid for the platform, or not permitted.
	ErrAddress = errors.New("uv: address unavailable")
	// ErrWouldBlock nothing was ready, e.g. Accept without a pending connection.
	ErrWouldBlock = errors.New("uv: operation would block")
	// ErrInvalidState the handle or loop is in the wrong lifecycle state for the call.
	ErrInvalidState = errors.New("uv: invalid state")
	// ErrInvalidArgument a nil callback, non-positive backlog or similar.
	ErrInvalidArgument = errors.New("uv: invalid argument")
)

// OpError is returned by synchronous operations. errors.Is matches both the
// Kind sentinel and the wrapped platform error.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	s := "uv: " + e.Op
	if e.Kind != nil {
		s += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

func isResourceErr(err error) bool {
	return errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOBUFS) || errors.Is(err, unix.ENOMEM)
}

// bindErrKind maps socket/bind failures onto the taxonomy.
func bindErrKind(err error) error {
	if isResourceErr(err) {
		return ErrResource
	}
	return ErrAddress
}

// acceptErrKind returns nil for accept failures outside the taxonomy.
func acceptErrKind(err error) error {
	if isResourceErr(err) {
		return ErrResource
	}
	return nil
}
