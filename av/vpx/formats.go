package vpx

import (
	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

// PixelFormatDescriptor relates a raw frame format to the backend image
// format, sample depth, codec flags and bitstream profile used to encode it.
type PixelFormatDescriptor struct {
	Format  video.PixelFormat
	Native  codec.ImgFmt
	Depth   int
	Flags   codec.CodecFlags
	Profile uint
}

// IsNone reports whether d is the "not found" sentinel.
func (d PixelFormatDescriptor) IsNone() bool {
	return d.Format == video.FormatNone
}

// NoneDescriptor is returned by lookups that find nothing.
var NoneDescriptor = PixelFormatDescriptor{Format: video.FormatNone, Native: codec.ImgFmtNone}

// DefaultFormat is used when an input format has no table entry.
const DefaultFormat = video.FormatYUV420P

var vp8Formats = []PixelFormatDescriptor{
	{video.FormatNV12, codec.ImgFmtNV12, 8, 0, 0},
	{video.FormatYVU420P, codec.ImgFmtYV12, 8, 0, 0},
	{video.FormatYUV420P, codec.ImgFmtI420, 8, 0, 0},
}

var vp9Formats = append(append([]PixelFormatDescriptor(nil), vp8Formats...),
	PixelFormatDescriptor{video.FormatYUV422P, codec.ImgFmtI422, 8, 0, 1},
	PixelFormatDescriptor{video.FormatYUV440P, codec.ImgFmtI440, 8, 0, 1},
	PixelFormatDescriptor{video.FormatYUV444P, codec.ImgFmtI444, 8, 0, 1},
	PixelFormatDescriptor{video.FormatYUV420P10, codec.ImgFmtI42016, 10, codec.UseHighBitDepth, 2},
	PixelFormatDescriptor{video.FormatYUV420P12, codec.ImgFmtI42016, 12, codec.UseHighBitDepth, 2},
	PixelFormatDescriptor{video.FormatYUV422P10, codec.ImgFmtI42216, 10, codec.UseHighBitDepth, 3},
	PixelFormatDescriptor{video.FormatYUV422P12, codec.ImgFmtI42216, 12, codec.UseHighBitDepth, 3},
	PixelFormatDescriptor{video.FormatYUV440P10, codec.ImgFmtI44016, 10, codec.UseHighBitDepth, 3},
	PixelFormatDescriptor{video.FormatYUV440P12, codec.ImgFmtI44016, 12, codec.UseHighBitDepth, 3},
	PixelFormatDescriptor{video.FormatYUV444P10, codec.ImgFmtI44416, 10, codec.UseHighBitDepth, 3},
	PixelFormatDescriptor{video.FormatYUV444P12, codec.ImgFmtI44416, 12, codec.UseHighBitDepth, 3},
)

// ResolveByFormat returns the first descriptor of v's table for format f,
// or NoneDescriptor.
func ResolveByFormat(v Variant, f video.PixelFormat) PixelFormatDescriptor {
	for _, d := range v.Formats() {
		if d.Format == f {
			return d
		}
	}
	return NoneDescriptor
}

// ResolveByNative returns the first descriptor of v's table with the given
// backend format and depth, or NoneDescriptor.
func ResolveByNative(v Variant, native codec.ImgFmt, depth int) PixelFormatDescriptor {
	for _, d := range v.Formats() {
		if d.Native == native && d.Depth == depth {
			return d
		}
	}
	return NoneDescriptor
}

// resolveWithFallback never returns the sentinel: misses map to DefaultFormat.
func resolveWithFallback(v Variant, f video.PixelFormat) PixelFormatDescriptor {
	d := ResolveByFormat(v, f)
	if d.IsNone() {
		d = ResolveByFormat(v, DefaultFormat)
	}
	return d
}
