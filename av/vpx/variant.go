package vpx

import (
	"fmt"
	"strings"

	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

// Variant selects a codec family: its pixel format table, default backend
// and codec-specific tuning controls.
type Variant interface {
	Name() string
	Codec() video.CodecID
	// Formats returns the ordered pixel format table.
	Formats() []PixelFormatDescriptor
	// Backend returns the libvpx interface for this family, or nil when the
	// binary was built without libvpx.
	Backend() codec.Interface
	// Controls returns the codec controls to apply after the context is
	// created, in order.
	Controls(t Tuning) []Control
}

// Tuning is the input to Variant.Controls.
type Tuning struct {
	Speed       int
	TuneContent TuneContent
	Lossless    bool
	Caps        video.CompressedCaps
	Bitrate     int
}

// Control is one codec control call.
type Control struct {
	ID    codec.ControlID
	Value int
}

var (
	VariantVP8 Variant = vp8Variant{}
	VariantVP9 Variant = vp9Variant{}
)

// ParseVariant accepts "vp8" or "vp9".
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vp8":
		return VariantVP8, nil
	case "vp9":
		return VariantVP9, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// accepts reports whether backend can produce v's bitstream.
func accepts(v Variant, backend codec.Interface) bool {
	switch backend.Bitstream() {
	case codec.BitstreamAny:
		return true
	case codec.BitstreamVP8:
		return v.Codec() == video.CodecVP8
	case codec.BitstreamVP9:
		return v.Codec() == video.CodecVP9
	default:
		return false
	}
}

type vp8Variant struct{}

func (vp8Variant) Name() string                     { return "vp8" }
func (vp8Variant) Codec() video.CodecID             { return video.CodecVP8 }
func (vp8Variant) Formats() []PixelFormatDescriptor { return vp8Formats }
func (vp8Variant) Backend() codec.Interface         { return codec.VP8() }

func (vp8Variant) Controls(t Tuning) []Control {
	screen := 0
	if t.TuneContent == TuneContentScreen {
		screen = 1
	}
	return []Control{
		{codec.CtrlCPUUsed, clamp(t.Speed, 0, MaxSpeed)},
		{codec.CtrlScreenContentMode, screen},
	}
}

type vp9Variant struct{}

func (vp9Variant) Name() string                     { return "vp9" }
func (vp9Variant) Codec() video.CodecID             { return video.CodecVP9 }
func (vp9Variant) Formats() []PixelFormatDescriptor { return vp9Formats }
func (vp9Variant) Backend() codec.Interface         { return codec.VP9() }

// VP9 accepts speeds 0..9, so the 0..16 knob is rescaled.
func (vp9Variant) Controls(t Tuning) []Control {
	lossless := 0
	if t.Lossless {
		lossless = 1
	}

	tune := codec.ContentDefault
	switch t.TuneContent {
	case TuneContentScreen:
		tune = codec.ContentScreen
	case TuneContentFilm:
		tune = codec.ContentFilm
	}

	return []Control{
		{codec.CtrlCPUUsed, clamp(9*t.Speed/16, 0, 9)},
		{codec.CtrlTargetLevel, SelectLevel(t.Caps.Width, t.Caps.Height, t.Caps.FPS, t.Bitrate)},
		{codec.CtrlLossless, lossless},
		{codec.CtrlTuneContent, tune},
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
