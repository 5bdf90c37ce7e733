package vpx

import (
	"fmt"
	"strings"

	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

// TuneContent hints the kind of material being encoded.
type TuneContent int

const (
	TuneContentDefault TuneContent = iota
	TuneContentScreen
	TuneContentFilm
)

func (t TuneContent) String() string {
	switch t {
	case TuneContentDefault:
		return "default"
	case TuneContentScreen:
		return "screen"
	case TuneContentFilm:
		return "film"
	default:
		return fmt.Sprintf("TuneContent(%d)", int(t))
	}
}

// ParseTuneContent is the inverse of TuneContent.String.
func ParseTuneContent(s string) (TuneContent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return TuneContentDefault, nil
	case "screen":
		return TuneContentScreen, nil
	case "film":
		return TuneContentFilm, nil
	default:
		return TuneContentDefault, fmt.Errorf("%w: %q", ErrUnknownTuneContent, s)
	}
}

// Option names passed to the option-changed callback.
const (
	OptionBitrate        = "bitrate"
	OptionGOP            = "gop"
	OptionErrorResilient = "errorResilient"
	OptionDeadline       = "deadline"
	OptionSpeed          = "speed"
	OptionLossless       = "lossless"
	OptionTuneContent    = "tuneContent"
	OptionFillGaps       = "fillGaps"
)

// Options is the user-facing encoder configuration.
type Options struct {
	// Bitrate is the target rate in bit/s.
	Bitrate int
	// GOP is the maximum keyframe interval in milliseconds.
	GOP            int
	ErrorResilient codec.ErrorResilientFlags
	Deadline       codec.Deadline
	// Speed trades quality for encoding speed, 0 (slowest) to 16.
	Speed       int
	Lossless    bool
	TuneContent TuneContent
	// FillGaps makes the pacer repeat frames to keep a constant rate.
	FillGaps bool
}

const (
	DefaultBitrate = 1500000
	DefaultGOP     = 1000
	DefaultSpeed   = 16
	MaxSpeed       = 16
)

// DefaultOptions returns the reset value of every option.
func DefaultOptions() Options {
	return Options{
		Bitrate:        DefaultBitrate,
		GOP:            DefaultGOP,
		ErrorResilient: codec.ErrorResilientNone,
		Deadline:       codec.DeadlineRealtime,
		Speed:          DefaultSpeed,
		Lossless:       false,
		TuneContent:    TuneContentDefault,
		FillGaps:       false,
	}
}

// setOption stores value in *field and reports the change through the
// option callback, unless the value is already current.
func setOption[T comparable](e *Encoder, name string, field *T, value T) {
	e.mu.Lock()
	if *field == value {
		e.mu.Unlock()
		return
	}
	*field = value
	callback := e.onOptionChanged
	e.mu.Unlock()

	if callback != nil {
		callback(name, value)
	}
}

func getOption[T any](e *Encoder, field *T) T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *field
}

// Options returns a snapshot of the current options.
func (e *Encoder) Options() Options {
	return getOption(e, &e.opts)
}

// SetOptions assigns every option, notifying each one that changed.
func (e *Encoder) SetOptions(opts Options) {
	e.SetBitrate(opts.Bitrate)
	e.SetGOP(opts.GOP)
	e.SetErrorResilient(opts.ErrorResilient)
	e.SetDeadline(opts.Deadline)
	e.SetSpeed(opts.Speed)
	e.SetLossless(opts.Lossless)
	e.SetTuneContent(opts.TuneContent)
	e.SetFillGaps(opts.FillGaps)
}

// ResetOptions restores every option to DefaultOptions.
func (e *Encoder) ResetOptions() {
	e.SetOptions(DefaultOptions())
}

func (e *Encoder) Bitrate() int { return getOption(e, &e.opts.Bitrate) }
func (e *Encoder) GOP() int     { return getOption(e, &e.opts.GOP) }
func (e *Encoder) ErrorResilient() codec.ErrorResilientFlags {
	return getOption(e, &e.opts.ErrorResilient)
}
func (e *Encoder) Deadline() codec.Deadline { return getOption(e, &e.opts.Deadline) }
func (e *Encoder) Speed() int               { return getOption(e, &e.opts.Speed) }
func (e *Encoder) Lossless() bool           { return getOption(e, &e.opts.Lossless) }
func (e *Encoder) TuneContent() TuneContent { return getOption(e, &e.opts.TuneContent) }
func (e *Encoder) FillGaps() bool           { return getOption(e, &e.opts.FillGaps) }

func (e *Encoder) SetBitrate(bitrate int) { setOption(e, OptionBitrate, &e.opts.Bitrate, bitrate) }
func (e *Encoder) SetGOP(ms int)          { setOption(e, OptionGOP, &e.opts.GOP, ms) }
func (e *Encoder) SetErrorResilient(flags codec.ErrorResilientFlags) {
	setOption(e, OptionErrorResilient, &e.opts.ErrorResilient, flags)
}
func (e *Encoder) SetDeadline(d codec.Deadline) { setOption(e, OptionDeadline, &e.opts.Deadline, d) }
func (e *Encoder) SetSpeed(speed int)           { setOption(e, OptionSpeed, &e.opts.Speed, speed) }
func (e *Encoder) SetLossless(lossless bool) {
	setOption(e, OptionLossless, &e.opts.Lossless, lossless)
}
func (e *Encoder) SetTuneContent(t TuneContent) {
	setOption(e, OptionTuneContent, &e.opts.TuneContent, t)
}
func (e *Encoder) SetFillGaps(fillGaps bool) {
	setOption(e, OptionFillGaps, &e.opts.FillGaps, fillGaps)
}

func (e *Encoder) ResetBitrate()        { e.SetBitrate(DefaultBitrate) }
func (e *Encoder) ResetGOP()            { e.SetGOP(DefaultGOP) }
func (e *Encoder) ResetErrorResilient() { e.SetErrorResilient(codec.ErrorResilientNone) }
func (e *Encoder) ResetDeadline()       { e.SetDeadline(codec.DeadlineRealtime) }
func (e *Encoder) ResetSpeed()          { e.SetSpeed(DefaultSpeed) }
func (e *Encoder) ResetLossless()       { e.SetLossless(false) }
func (e *Encoder) ResetTuneContent()    { e.SetTuneContent(TuneContentDefault) }
func (e *Encoder) ResetFillGaps()       { e.SetFillGaps(false) }
