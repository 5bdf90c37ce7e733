// Package vpx exposes the libvpx encoder API to Go.
//
// The package mirrors the shape of the C API (codec interface, encoder
// configuration, codec context, raw image, compressed data packets) so the
// encode adapter in av/vpx can drive any backend that satisfies Interface.
// The cgo binding is compiled only with the "libvpx" build tag; without it
// VP8() and VP9() return nil and callers must supply another backend, such
// as the pure Go passthrough backend in this package.
package vpx

import (
	"fmt"
	"strconv"
	"strings"
)

// ImgFmt identifies a native raw image layout.
// Values match vpx_img_fmt_t so they can be handed to libvpx unchanged.
type ImgFmt int

const (
	imgFmtPlanar       ImgFmt = 0x100
	imgFmtUVFlip       ImgFmt = 0x200
	imgFmtHighBitDepth ImgFmt = 0x800
	ImgFmtNone         ImgFmt = 0
	ImgFmtYV12         ImgFmt = imgFmtPlanar | imgFmtUVFlip | 1
	ImgFmtI420         ImgFmt = imgFmtPlanar | 2
	ImgFmtI422         ImgFmt = imgFmtPlanar | 5
	ImgFmtI444         ImgFmt = imgFmtPlanar | 6
	ImgFmtI440         ImgFmt = imgFmtPlanar | 7
	ImgFmtNV12         ImgFmt = imgFmtPlanar | 9
	ImgFmtI42016       ImgFmt = ImgFmtI420 | imgFmtHighBitDepth
	ImgFmtI42216       ImgFmt = ImgFmtI422 | imgFmtHighBitDepth
	ImgFmtI44416       ImgFmt = ImgFmtI444 | imgFmtHighBitDepth
	ImgFmtI44016       ImgFmt = ImgFmtI440 | imgFmtHighBitDepth
)

var imgFmtNames = map[ImgFmt]string{
	ImgFmtNone:   "none",
	ImgFmtYV12:   "yv12",
	ImgFmtI420:   "i420",
	ImgFmtI422:   "i422",
	ImgFmtI444:   "i444",
	ImgFmtI440:   "i440",
	ImgFmtNV12:   "nv12",
	ImgFmtI42016: "i42016",
	ImgFmtI42216: "i42216",
	ImgFmtI44416: "i44416",
	ImgFmtI44016: "i44016",
}

// String returns the libvpx-style short name of the format.
func (f ImgFmt) String() string {
	if name, ok := imgFmtNames[f]; ok {
		return name
	}
	return fmt.Sprintf("ImgFmt(0x%x)", int(f))
}

// HighBitDepth reports whether samples are stored as 16-bit words.
func (f ImgFmt) HighBitDepth() bool {
	return f&imgFmtHighBitDepth != 0
}

// ChromaShift returns the horizontal and vertical chroma subsampling shifts.
func (f ImgFmt) ChromaShift() (x, y int) {
	switch f &^ imgFmtHighBitDepth {
	case ImgFmtI420, ImgFmtYV12, ImgFmtNV12:
		return 1, 1
	case ImgFmtI422:
		return 1, 0
	case ImgFmtI440:
		return 0, 1
	default:
		return 0, 0
	}
}

// PlaneCount returns how many memory planes an image of this format uses.
// NV12 keeps its chroma samples interleaved in a single second plane.
func (f ImgFmt) PlaneCount() int {
	switch f {
	case ImgFmtNone:
		return 0
	case ImgFmtNV12:
		return 2
	default:
		return 3
	}
}

// BitDepth is the codec-internal sample depth.
type BitDepth int

const (
	BitDepth8  BitDepth = 8
	BitDepth10 BitDepth = 10
	BitDepth12 BitDepth = 12
)

// CodecFlags are passed to Interface.Init.
type CodecFlags uint32

const (
	// UsePSNR asks the encoder to emit PSNR packets.
	UsePSNR CodecFlags = 0x10000
	// UseOutputPartition makes VP8 emit one packet per partition.
	UseOutputPartition CodecFlags = 0x20000
	// UseHighBitDepth enables 10/12-bit encoding.
	UseHighBitDepth CodecFlags = 0x40000
)

// ErrorResilientFlags select the bitstream error resilience features.
type ErrorResilientFlags uint32

const (
	ErrorResilientNone       ErrorResilientFlags = 0
	ErrorResilientDefault    ErrorResilientFlags = 0x1
	ErrorResilientPartitions ErrorResilientFlags = 0x2
)

// ParseErrorResilient parses a comma separated list of "default" and
// "partitions". An empty string or "none" yields ErrorResilientNone.
func ParseErrorResilient(s string) (ErrorResilientFlags, error) {
	var flags ErrorResilientFlags
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "", "none":
		case "default":
			flags |= ErrorResilientDefault
		case "partitions":
			flags |= ErrorResilientPartitions
		default:
			return ErrorResilientNone, fmt.Errorf("%w: %q", ErrInvalidErrorResilient, part)
		}
	}
	return flags, nil
}

func (f ErrorResilientFlags) String() string {
	var parts []string
	if f&ErrorResilientDefault != 0 {
		parts = append(parts, "default")
	}
	if f&ErrorResilientPartitions != 0 {
		parts = append(parts, "partitions")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Deadline is the soft per-frame time budget, in microseconds.
// The three named values are the ones libvpx treats specially.
type Deadline uint64

const (
	DeadlineBestQuality Deadline = 0
	DeadlineRealtime    Deadline = 1
	DeadlineGoodQuality Deadline = 1000000
)

// String names the well-known deadlines.
func (d Deadline) String() string {
	switch d {
	case DeadlineBestQuality:
		return "best"
	case DeadlineRealtime:
		return "realtime"
	case DeadlineGoodQuality:
		return "good"
	default:
		return fmt.Sprintf("%dus", uint64(d))
	}
}

// ParseDeadline accepts the names printed by Deadline.String or a plain
// number of microseconds, with or without the "us" suffix.
func ParseDeadline(s string) (Deadline, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "best":
		return DeadlineBestQuality, nil
	case "realtime", "":
		return DeadlineRealtime, nil
	case "good":
		return DeadlineGoodQuality, nil
	}
	v, err := strconv.ParseUint(strings.TrimSuffix(s, "us"), 10, 64)
	if err != nil {
		return DeadlineRealtime, fmt.Errorf("%w: %q", ErrInvalidDeadline, s)
	}
	return Deadline(v), nil
}

// RateControl is the rate control end usage.
type RateControl int

const (
	RateControlVBR RateControl = iota
	RateControlCBR
	RateControlCQ
	RateControlQ
)

// Pass selects the multi-pass mode. Only one-pass encoding is used here.
type Pass int

const (
	PassOne Pass = iota
	PassFirst
	PassLast
)

// Rational is a fraction used for the codec time base.
type Rational struct {
	Num int
	Den int
}

// EncoderConfig mirrors the fields of vpx_codec_enc_cfg_t the adapter sets.
type EncoderConfig struct {
	Usage          uint
	Threads        uint
	Profile        uint
	Width          uint
	Height         uint
	BitDepth       BitDepth
	InputBitDepth  uint
	TimeBase       Rational
	ErrorResilient ErrorResilientFlags
	Pass           Pass
	LagInFrames    uint
	EndUsage       RateControl
	TargetBitrate  uint // kbit/s
	KFMinDist      uint
	KFMaxDist      uint
}

// ControlID names a codec control. The cgo binding maps each one to the
// corresponding VP8E_/VP9E_ constant.
type ControlID int

const (
	CtrlCPUUsed ControlID = iota + 1
	CtrlScreenContentMode
	CtrlTargetLevel
	CtrlLossless
	CtrlTuneContent
)

var controlNames = map[ControlID]string{
	CtrlCPUUsed:           "VP8E_SET_CPUUSED",
	CtrlScreenContentMode: "VP8E_SET_SCREEN_CONTENT_MODE",
	CtrlTargetLevel:       "VP9E_SET_TARGET_LEVEL",
	CtrlLossless:          "VP9E_SET_LOSSLESS",
	CtrlTuneContent:       "VP9E_SET_TUNE_CONTENT",
}

func (c ControlID) String() string {
	if name, ok := controlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ControlID(%d)", int(c))
}

// Content tuning values for CtrlTuneContent.
const (
	ContentDefault = 0
	ContentScreen  = 1
	ContentFilm    = 2
)

// EncodeFlags are per-frame flags for Context.Encode.
type EncodeFlags int64

// ForceKeyFrame requests a key frame for the submitted image.
const ForceKeyFrame EncodeFlags = 1

// PacketKind distinguishes compressed data from side data.
type PacketKind int

const (
	PacketKindFrame PacketKind = iota
	PacketKindStats
	PacketKindFPMBStats
	PacketKindPSNR
	PacketKindCustom PacketKind = 256
)

// FrameFlags describe a compressed frame.
type FrameFlags uint32

const (
	FrameIsKey       FrameFlags = 0x1
	FrameIsDroppable FrameFlags = 0x2
	FrameIsInvisible FrameFlags = 0x4
	FrameIsFragment  FrameFlags = 0x8
)

// CxPacket is one chunk of encoder output. Data is only valid until the next
// call to Context.Encode or Context.Destroy; copy it to retain it.
type CxPacket struct {
	Kind     PacketKind
	Data     []byte
	PTS      int64
	Duration uint64
	Flags    FrameFlags
}
