package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrConversationNotFound also covers conversations owned by someone
	// else and, where a live conversation is required, archived ones.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrJobNotFound          = errors.New("job not found")
	ErrEnqueueFailed        = errors.New("enqueue failed")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
