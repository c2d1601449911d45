package common

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the window, spectral and feature packages.
// Callers match with errors.Is; messages carry the offending values.
var (
	// ErrConfig marks construction-time configuration failures (unknown
	// window family, unknown pipeline token, invalid sizes).
	ErrConfig = errors.New("invalid configuration")

	// ErrShape marks a tensor of the wrong rank or size for an operation.
	ErrShape = errors.New("invalid tensor shape")

	// ErrUnsupportedShape marks a shape that is valid in general but refused
	// by a particular stage, e.g. multi-channel input to SpecAugment.
	ErrUnsupportedShape = errors.New("unsupported tensor shape")

	// ErrInsufficientSamples marks an utterance shorter than one frame.
	ErrInsufficientSamples = errors.New("insufficient samples")
)

// InsufficientSamplesError reports every sample count that could not fill a
// single analysis frame.
type InsufficientSamplesError struct {
	FrameLen int
	Counts   []int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("audio samples %v less than frame_len (%d)", e.Counts, e.FrameLen)
}

// Is reports whether target is ErrInsufficientSamples.
func (e *InsufficientSamplesError) Is(target error) bool {
	return target == ErrInsufficientSamples
}

// Configf wraps ErrConfig with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Shapef wraps ErrShape with a formatted message.
func Shapef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}
