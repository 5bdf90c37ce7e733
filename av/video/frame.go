package video

import "fmt"

// Frame is a raw picture plus its stream metadata.
//
// Planes[i] holds the rows of plane i, Strides[i] bytes apart. Rows of a
// subsampled plane are addressed with luma row numbers through Line.
type Frame struct {
	Caps     Caps
	Planes   [][]byte
	Strides  []int
	PTS      int64
	Duration int64
	TimeBase Fraction
	// ID and Index identify the stream the frame belongs to.
	ID    int64
	Index int
}

// NewFrame allocates a zeroed frame with tightly packed rows.
func NewFrame(caps Caps) (*Frame, error) {
	if !caps.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCaps, caps)
	}

	frame := &Frame{Caps: caps}
	if caps.FPS.IsValid() {
		frame.TimeBase = caps.FPS.Invert()
		frame.Duration = 1
	}
	for plane := 0; plane < caps.Format.PlaneCount(); plane++ {
		rowBytes, rows := caps.Format.planeSize(plane, caps.Width, caps.Height)
		frame.Planes = append(frame.Planes, make([]byte, rowBytes*rows))
		frame.Strides = append(frame.Strides, rowBytes)
	}
	return frame, nil
}

// PlaneCount returns the number of planes the frame's format uses.
func (f *Frame) PlaneCount() int {
	return f.Caps.Format.PlaneCount()
}

// LineSize returns the stride of plane.
func (f *Frame) LineSize(plane int) int {
	return f.Strides[plane]
}

// WidthDiv returns the horizontal subsampling shift of plane.
func (f *Frame) WidthDiv(plane int) int {
	return f.Caps.Format.Planes()[plane].WidthDiv
}

// HeightDiv returns the vertical subsampling shift of plane.
func (f *Frame) HeightDiv(plane int) int {
	return f.Caps.Format.Planes()[plane].HeightDiv
}

// RowBytes returns the number of meaningful bytes in each row of plane.
func (f *Frame) RowBytes(plane int) int {
	rowBytes, _ := f.Caps.Format.planeSize(plane, f.Caps.Width, f.Caps.Height)
	return rowBytes
}

// PlaneHeight returns the number of rows stored in plane.
func (f *Frame) PlaneHeight(plane int) int {
	_, rows := f.Caps.Format.planeSize(plane, f.Caps.Width, f.Caps.Height)
	return rows
}

// Line returns the row of plane that covers luma row y, LineSize bytes long
// (shorter if the plane buffer ends first).
func (f *Frame) Line(plane, y int) []byte {
	offset := (y >> f.HeightDiv(plane)) * f.Strides[plane]
	end := offset + f.Strides[plane]
	if end > len(f.Planes[plane]) {
		end = len(f.Planes[plane])
	}
	return f.Planes[plane][offset:end]
}

// Validate checks that every plane holds the rows the caps call for.
func (f *Frame) Validate() error {
	if !f.Caps.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidCaps, f.Caps)
	}
	if len(f.Planes) != f.PlaneCount() || len(f.Strides) != f.PlaneCount() {
		return fmt.Errorf("%w: %d planes for %s", ErrShortFrame, len(f.Planes), f.Caps.Format)
	}
	for plane := range f.Planes {
		rowBytes, rows := f.Caps.Format.planeSize(plane, f.Caps.Width, f.Caps.Height)
		if f.Strides[plane] < rowBytes {
			return fmt.Errorf("%w: plane %d stride %d < %d", ErrShortFrame, plane, f.Strides[plane], rowBytes)
		}
		need := (rows-1)*f.Strides[plane] + rowBytes
		if len(f.Planes[plane]) < need {
			return fmt.Errorf("%w: plane %d has %d bytes, need %d", ErrShortFrame, plane, len(f.Planes[plane]), need)
		}
	}
	return nil
}

// WithMetadata returns a shallow copy of f sharing the plane memory.
func (f *Frame) WithMetadata() *Frame {
	out := *f
	return &out
}
