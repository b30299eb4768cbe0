package frustum

import "errors"

var (
	// ErrTooFewPoints is returned when a point set is empty or too small to optimize over.
	ErrTooFewPoints = errors.New("too few points for operation")

	// ErrBadDepthBand is returned when a depth band does not satisfy min < max.
	ErrBadDepthBand = errors.New("depth band min must be less than max")

	// ErrMaskLength is returned when a mask's length does not match the point set it is applied to.
	ErrMaskLength = errors.New("mask length does not match point count")

	// ErrNoIntrinsics is returned when camera intrinsics are missing or invalid.
	ErrNoIntrinsics = errors.New("missing or invalid camera intrinsics")
)
