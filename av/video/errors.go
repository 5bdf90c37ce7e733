package video

import "errors"

var (
	// ErrUnknownFormat is returned when a pixel format name is not recognized.
	ErrUnknownFormat = errors.New("unknown pixel format")

	// ErrInvalidCaps is returned for zero or negative frame dimensions.
	ErrInvalidCaps = errors.New("invalid video caps")

	// ErrInvalidFraction is returned when a fraction cannot be parsed.
	ErrInvalidFraction = errors.New("invalid fraction")

	// ErrShortFrame is returned when a frame's planes are smaller than its caps require.
	ErrShortFrame = errors.New("frame data too short")

	// ErrInvalidStream is returned for malformed Y4M input.
	ErrInvalidStream = errors.New("invalid y4m stream")
)
