package video

import (
	"fmt"
	"strings"
)

// PixelFormat identifies a raw frame memory layout.
type PixelFormat int

const (
	FormatNone PixelFormat = iota
	FormatYUV420P
	FormatYVU420P
	FormatNV12
	FormatYUV422P
	FormatYUV440P
	FormatYUV444P
	FormatYUV420P10
	FormatYUV420P12
	FormatYUV422P10
	FormatYUV422P12
	FormatYUV440P10
	FormatYUV440P12
	FormatYUV444P10
	FormatYUV444P12
	FormatRGB24
)

// PlaneSpec describes one memory plane of a format.
type PlaneSpec struct {
	// WidthDiv and HeightDiv are the subsampling shifts relative to luma.
	WidthDiv  int
	HeightDiv int
	// Samples is the number of interleaved samples per pixel.
	Samples int
}

type formatSpec struct {
	name   string
	depth  int
	planes []PlaneSpec
}

var (
	planes420 = []PlaneSpec{{0, 0, 1}, {1, 1, 1}, {1, 1, 1}}
	planes422 = []PlaneSpec{{0, 0, 1}, {1, 0, 1}, {1, 0, 1}}
	planes440 = []PlaneSpec{{0, 0, 1}, {0, 1, 1}, {0, 1, 1}}
	planes444 = []PlaneSpec{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
)

var formatSpecs = map[PixelFormat]formatSpec{
	FormatYUV420P:   {"yuv420p", 8, planes420},
	FormatYVU420P:   {"yvu420p", 8, planes420},
	FormatNV12:      {"nv12", 8, []PlaneSpec{{0, 0, 1}, {1, 1, 2}}},
	FormatYUV422P:   {"yuv422p", 8, planes422},
	FormatYUV440P:   {"yuv440p", 8, planes440},
	FormatYUV444P:   {"yuv444p", 8, planes444},
	FormatYUV420P10: {"yuv420p10", 10, planes420},
	FormatYUV420P12: {"yuv420p12", 12, planes420},
	FormatYUV422P10: {"yuv422p10", 10, planes422},
	FormatYUV422P12: {"yuv422p12", 12, planes422},
	FormatYUV440P10: {"yuv440p10", 10, planes440},
	FormatYUV440P12: {"yuv440p12", 12, planes440},
	FormatYUV444P10: {"yuv444p10", 10, planes444},
	FormatYUV444P12: {"yuv444p12", 12, planes444},
	FormatRGB24:     {"rgb24", 8, []PlaneSpec{{0, 0, 3}}},
}

// PixelFormats returns every known format in declaration order.
func PixelFormats() []PixelFormat {
	formats := make([]PixelFormat, 0, len(formatSpecs))
	for f := FormatYUV420P; f <= FormatRGB24; f++ {
		formats = append(formats, f)
	}
	return formats
}

func (f PixelFormat) String() string {
	if f == FormatNone {
		return "none"
	}
	if spec, ok := formatSpecs[f]; ok {
		return spec.name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// ParsePixelFormat is the inverse of String. Matching ignores case.
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, spec := range formatSpecs {
		if spec.name == name {
			return f, nil
		}
	}
	return FormatNone, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// BitDepth returns the significant bits per sample, or 0 for unknown formats.
func (f PixelFormat) BitDepth() int {
	return formatSpecs[f].depth
}

// BytesPerSample is 2 for formats deeper than 8 bits.
func (f PixelFormat) BytesPerSample() int {
	if f.BitDepth() > 8 {
		return 2
	}
	return 1
}

// Planes returns the plane layout, or nil for unknown formats.
func (f PixelFormat) Planes() []PlaneSpec {
	return formatSpecs[f].planes
}

// PlaneCount returns the number of memory planes.
func (f PixelFormat) PlaneCount() int {
	return len(formatSpecs[f].planes)
}

// IsYUV reports whether the format stores luma and chroma samples.
func (f PixelFormat) IsYUV() bool {
	_, ok := formatSpecs[f]
	return ok && f != FormatRGB24
}

// planeSize returns the samples per row and the row count of plane for a
// width x height picture. Odd sizes round up.
func (f PixelFormat) planeSize(plane, width, height int) (rowBytes, rows int) {
	spec := f.Planes()[plane]
	w := (width + (1 << spec.WidthDiv) - 1) >> spec.WidthDiv
	rows = (height + (1 << spec.HeightDiv) - 1) >> spec.HeightDiv
	return w * spec.Samples * f.BytesPerSample(), rows
}
