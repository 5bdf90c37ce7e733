package vpx

import "errors"

// Initialization errors, returned wrapped by SetStateErr.
var (
	// ErrNoInterface indicates no codec backend is available.
	ErrNoInterface = errors.New("codec interface not available")

	// ErrBackendMismatch indicates a backend bound to the other codec.
	ErrBackendMismatch = errors.New("backend does not produce the variant's codec")

	// ErrInvalidInputCaps indicates the input caps are empty or invalid.
	ErrInvalidInputCaps = errors.New("invalid input caps")

	// ErrCodecInit indicates the backend rejected the configuration.
	ErrCodecInit = errors.New("codec initialization failed")

	// ErrImageAlloc indicates the native frame buffer could not be allocated.
	ErrImageAlloc = errors.New("failed to allocate the input frame")
)

// State errors.
var (
	// ErrInvalidTransition indicates a state change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownVariant indicates an unrecognized codec variant name.
	ErrUnknownVariant = errors.New("unknown codec variant")

	// ErrUnknownTuneContent indicates an unrecognized content tuning name.
	ErrUnknownTuneContent = errors.New("unknown tune content")
)
