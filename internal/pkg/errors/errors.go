package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a conversation, resource, or unit id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input to store operations.
	ErrValidation = errors.New("validation failed")
	// ErrGeneration is returned when a supplemental generation call fails,
	// times out, or produces an empty response.
	ErrGeneration = errors.New("generation failed")
	// ErrLink is returned when attaching a resource to a unit fails.
	ErrLink = errors.New("resource link failed")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func Generationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrGeneration}, args...)...)
}

func Linkf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrLink}, args...)...)
}

func Is(err, target error) bool { return errors.Is(err, target) }
