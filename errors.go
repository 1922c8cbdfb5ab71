package opticks

import (
	"errors"
	"fmt"
)

var (
	// ErrUserIdentityMissing is returned when a resolution runs without a user id.
	ErrUserIdentityMissing = errors.New("opticks: user id is not set")
	// ErrEngineUnavailable is returned when the engine is needed before Initialize.
	ErrEngineUnavailable = errors.New("opticks: engine not initialized")
	// ErrEngineFactoryMissing is returned by Initialize when no factory is registered.
	ErrEngineFactoryMissing = errors.New("opticks: engine factory not registered")
	// ErrInvalidAttribute is returned for attribute values other than string or bool.
	ErrInvalidAttribute = errors.New("opticks: attribute values must be string or bool")
	// ErrInvalidValue is returned for toggle values other than string, bool or nil.
	ErrInvalidValue = errors.New("opticks: toggle values must be string, bool or nil")
)

// InitializationError reports a failure building or wiring the engine.
type InitializationError struct {
	Stage string
	Err   error
}

func (e *InitializationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("opticks: initialize %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapInitializationError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var initErr *InitializationError
	if errors.As(err, &initErr) {
		return err
	}
	return &InitializationError{Stage: stage, Err: err}
}
