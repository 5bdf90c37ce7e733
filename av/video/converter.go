package video

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// AspectRatioMode controls how a picture is fitted into a different size.
type AspectRatioMode int

const (
	// AspectRatioIgnore stretches the picture to the output size.
	AspectRatioIgnore AspectRatioMode = iota
	// AspectRatioFit scales the picture to fit inside the output size and
	// pads the rest with black.
	AspectRatioFit
)

// Converter adapts raw frames to a fixed output format, size and frame rate.
//
// Frames that already match the output caps are passed through without
// copying. Format changes are supported between 8-bit layouts (planar YUV,
// NV12 and packed RGB24 as a source); size changes use bilinear
// interpolation.
type Converter struct {
	mu         sync.Mutex
	outputCaps Caps
	aspect     AspectRatioMode
}

// NewConverter creates a converter with no output caps. Until SetOutputCaps
// is called, Convert returns its input unchanged.
func NewConverter() *Converter {
	return &Converter{aspect: AspectRatioFit}
}

// SetOutputCaps sets the caps every converted frame will have.
func (c *Converter) SetOutputCaps(caps Caps) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputCaps = caps
}

// OutputCaps returns the current target caps.
func (c *Converter) OutputCaps() Caps {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputCaps
}

// SetAspectRatioMode selects how size changes keep the aspect ratio.
func (c *Converter) SetAspectRatioMode(mode AspectRatioMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = mode
}

// Convert returns frame in the output caps, or nil when the frame is
// malformed or cannot be converted.
func (c *Converter) Convert(frame *Frame) *Frame {
	c.mu.Lock()
	out := c.outputCaps
	mode := c.aspect
	c.mu.Unlock()

	if frame == nil {
		return nil
	}

	if err := frame.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Converter.Convert",
			"error":    err.Error(),
		}).Debug("Dropping malformed frame")
		return nil
	}

	if !out.IsValid() {
		return frame
	}
	if !out.FPS.IsValid() {
		out.FPS = frame.Caps.FPS
	}

	if frame.Caps.Format == out.Format && frame.Caps.Width == out.Width && frame.Caps.Height == out.Height {
		result := frame.WithMetadata()
		result.Caps = out
		return result
	}

	if !convertible(frame.Caps.Format) || !convertible(out.Format) || out.Format == FormatRGB24 {
		logrus.WithFields(logrus.Fields{
			"function": "Converter.Convert",
			"from":     frame.Caps.String(),
			"to":       out.String(),
		}).Debug("Unsupported conversion")
		return nil
	}

	src := frame
	if src.Caps.Format == FormatRGB24 {
		src = rgbToYUV444(frame)
	}

	result, err := NewFrame(out)
	if err != nil {
		return nil
	}
	result.PTS = frame.PTS
	result.Duration = frame.Duration
	result.TimeBase = frame.TimeBase
	result.ID = frame.ID
	result.Index = frame.Index

	fillBlack(result)

	x, y, w, h := 0, 0, out.Width, out.Height
	if mode == AspectRatioFit {
		x, y, w, h = fitRect(src.Caps.Width, src.Caps.Height, out.Width, out.Height)
	}

	for comp := 0; comp < 3; comp++ {
		sp := componentOf(src, comp)
		dp := componentOf(result, comp)

		dx := x >> dp.wdiv
		dy := y >> dp.hdiv
		dw := min(ceilShift(w, dp.wdiv), dp.width-dx)
		dh := min(ceilShift(h, dp.hdiv), dp.height-dy)
		if dw <= 0 || dh <= 0 {
			continue
		}

		scalePlane(sp.data, sp.width, sp.height, sp.stride, sp.step,
			dp.data[dy*dp.stride+dx*dp.step:], dw, dh, dp.stride, dp.step)
	}

	return result
}

func convertible(f PixelFormat) bool {
	return f.BitDepth() == 8
}

// component addresses one of the Y, U, V sample grids of a frame.
type component struct {
	data   []byte
	width  int
	height int
	stride int
	step   int
	wdiv   int
	hdiv   int
}

func componentOf(f *Frame, comp int) component {
	plane, offset, step := comp, 0, 1
	switch f.Caps.Format {
	case FormatYVU420P:
		plane = [3]int{0, 2, 1}[comp]
	case FormatNV12:
		if comp > 0 {
			plane, offset, step = 1, comp-1, 2
		}
	}

	spec := f.Caps.Format.Planes()[plane]
	return component{
		data:   f.Planes[plane][offset:],
		width:  ceilShift(f.Caps.Width, spec.WidthDiv),
		height: ceilShift(f.Caps.Height, spec.HeightDiv),
		stride: f.Strides[plane],
		step:   step,
		wdiv:   spec.WidthDiv,
		hdiv:   spec.HeightDiv,
	}
}

func ceilShift(n, shift int) int {
	return (n + (1 << shift) - 1) >> shift
}

// fitRect centers a srcW x srcH picture inside dstW x dstH keeping its
// aspect ratio. Offsets are even so chroma samples stay aligned.
func fitRect(srcW, srcH, dstW, dstH int) (x, y, w, h int) {
	if srcW*dstH > dstW*srcH {
		w = dstW
		h = (srcH*dstW + srcW/2) / srcW
	} else {
		h = dstH
		w = (srcW*dstH + srcH/2) / srcH
	}
	w = max(w, 1)
	h = max(h, 1)
	x = ((dstW - w) / 2) &^ 1
	y = ((dstH - h) / 2) &^ 1
	return x, y, w, h
}

func fillBlack(f *Frame) {
	for plane := range f.Planes {
		value := byte(128)
		if plane == 0 {
			value = 16
		}
		for i := range f.Planes[plane] {
			f.Planes[plane][i] = value
		}
	}
}

// rgbToYUV444 converts packed RGB24 to planar BT.601 limited-range YUV.
func rgbToYUV444(f *Frame) *Frame {
	caps := f.Caps
	caps.Format = FormatYUV444P
	out, _ := NewFrame(caps)

	for y := 0; y < caps.Height; y++ {
		row := f.Line(0, y)
		for x := 0; x < caps.Width; x++ {
			r := int(row[3*x])
			g := int(row[3*x+1])
			b := int(row[3*x+2])
			i := y*out.Strides[0] + x
			out.Planes[0][i] = byte(((66*r + 129*g + 25*b + 128) >> 8) + 16)
			out.Planes[1][i] = byte(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
			out.Planes[2][i] = byte(((112*r - 94*g - 18*b + 128) >> 8) + 128)
		}
	}

	return out
}

// scalePlane resamples one sample grid with bilinear interpolation. step is
// the distance in bytes between horizontally adjacent samples.
func scalePlane(src []byte, srcWidth, srcHeight, srcStride, srcStep int,
	dst []byte, dstWidth, dstHeight, dstStride, dstStep int) {

	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := min(y1+1, srcHeight-1)
		fy := srcY - float64(y1)

		for x := 0; x < dstWidth; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := min(x1+1, srcWidth-1)
			fx := srcX - float64(x1)

			p11 := float64(src[y1*srcStride+x1*srcStep])
			p12 := float64(src[y1*srcStride+x2*srcStep])
			p21 := float64(src[y2*srcStride+x1*srcStep])
			p22 := float64(src[y2*srcStride+x2*srcStep])

			top := p11*(1-fx) + p12*fx
			bottom := p21*(1-fx) + p22*fx
			pixel := top*(1-fy) + bottom*fy

			dst[y*dstStride+x*dstStep] = byte(pixel + 0.5)
		}
	}
}
