package access

import (
	"errors"
	"fmt"
)

// Sentinels usable with errors.Is when the caller does not need fields.
var (
	ErrAccessDenied       = errors.New("access: denied")
	ErrFeatureUnavailable = errors.New("access: feature unavailable")
	ErrUnknownToken       = errors.New("access: unknown token")
)

// AccessDeniedError reports a failed hard enforcement of a permission.
type AccessDeniedError struct {
	Resource string
	Action   string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access: denied %s on %s", e.Action, e.Resource)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

// FeatureUnavailableError reports a failed hard enforcement of a feature gate.
type FeatureUnavailableError struct {
	Key string
}

func (e *FeatureUnavailableError) Error() string {
	return fmt.Sprintf("access: feature %q unavailable", e.Key)
}

func (e *FeatureUnavailableError) Is(target error) bool { return target == ErrFeatureUnavailable }
