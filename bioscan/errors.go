package bioscan

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any work starts.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a selection naming an unknown receptor. It is validation class.
	ErrNotFound = fmt.Errorf("%w: receptor not found", ErrValidation)
	// ErrLoad marks a model or tokenizer that failed to initialize.
	ErrLoad = errors.New("embedding model failed to load")
	// ErrNotReady is returned for calls made before the model finished loading.
	ErrNotReady = fmt.Errorf("%w: model not ready", ErrLoad)
	// ErrInference marks a failure while computing a signature.
	ErrInference = errors.New("inference failed")
	// ErrBusy is returned when an analysis is already running.
	ErrBusy = errors.New("analysis already running")
)

// InferenceError records which sequence failed to embed.
type InferenceError struct {
	Target string
	Err    error
}

func (e *InferenceError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("inference failed: %v", e.Err)
	}
	return fmt.Sprintf("inference failed for %s: %v", e.Target, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInference) match every InferenceError.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
