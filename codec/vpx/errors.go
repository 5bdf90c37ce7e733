package vpx

import (
	"errors"
	"fmt"
)

// CodecError is a libvpx status code (vpx_codec_err_t).
type CodecError int

const (
	CodecOK CodecError = iota
	CodecErrorGeneric
	CodecMemError
	CodecABIMismatch
	CodecIncapable
	CodecUnsupBitstream
	CodecUnsupFeature
	CodecCorruptFrame
	CodecInvalidParam
	CodecListEnd
)

// Error returns the same text as vpx_codec_err_to_string.
func (e CodecError) Error() string {
	switch e {
	case CodecOK:
		return "Success"
	case CodecErrorGeneric:
		return "Unspecified internal error"
	case CodecMemError:
		return "Memory allocation error"
	case CodecABIMismatch:
		return "ABI version mismatch"
	case CodecIncapable:
		return "Codec does not implement requested capability"
	case CodecUnsupBitstream:
		return "Bitstream not supported by this decoder"
	case CodecUnsupFeature:
		return "Encoded bitstream uses an unsupported feature"
	case CodecCorruptFrame:
		return "Corrupt frame detected"
	case CodecInvalidParam:
		return "Invalid parameter"
	case CodecListEnd:
		return "End of iterated list"
	default:
		return "Unrecognized error code"
	}
}

// Error carries a status code plus the optional detail string a codec
// context reports through vpx_codec_error_detail.
type Error struct {
	Code   CodecError
	Detail string
}

// Error prefers the detail string and falls back to the generic code text.
func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Code.Error()
}

// Unwrap exposes the status code to errors.Is.
func (e *Error) Unwrap() error {
	return e.Code
}

// newError returns nil for CodecOK.
func newError(code CodecError, detail string) error {
	if code == CodecOK {
		return nil
	}
	return &Error{Code: code, Detail: detail}
}

var (
	// ErrNilImage is returned when a nil image is used where one is required.
	ErrNilImage = errors.New("nil image")

	// ErrDestroyed is returned by a context after Destroy.
	ErrDestroyed = errors.New("codec context destroyed")

	// ErrInvalidDeadline is returned by ParseDeadline.
	ErrInvalidDeadline = errors.New("invalid deadline")

	// ErrInvalidErrorResilient is returned by ParseErrorResilient.
	ErrInvalidErrorResilient = errors.New("invalid error resilient flag")
)

func errInvalidDimensions(width, height int) error {
	return fmt.Errorf("%w: invalid image dimensions %dx%d", CodecInvalidParam, width, height)
}
