package nlu

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Process while any of the three classifier
// models is still unloaded. The session speaks the retrain instruction
// before rejecting.
var ErrNotReady = errors.New("nlu: classifier models not loaded")

// ErrUnsupportedLanguage is returned when the classifier detects a locale
// the deployment does not support.
var ErrUnsupportedLanguage = errors.New("nlu: unsupported language")

// MessageIntentNotFound is carried on the outcome when neither the main
// classifier nor the fallback table produced an intent.
const MessageIntentNotFound = "Intent not found"

// ExecutorError wraps a Brain execution failure. The conversation store is
// left untouched by the failed step.
type ExecutorError struct {
	Err error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("nlu: brain execution failed: %v", e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }
