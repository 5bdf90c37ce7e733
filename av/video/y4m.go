package video

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	y4mMagic       = "YUV4MPEG2"
	y4mFrameMarker = "FRAME"
	y4mMaxHeader   = 4096
)

var y4mColorspaces = map[string]PixelFormat{
	"420":      FormatYUV420P,
	"420jpeg":  FormatYUV420P,
	"420paldv": FormatYUV420P,
	"420mpeg2": FormatYUV420P,
	"422":      FormatYUV422P,
	"444":      FormatYUV444P,
	"420p10":   FormatYUV420P10,
	"420p12":   FormatYUV420P12,
	"422p10":   FormatYUV422P10,
	"422p12":   FormatYUV422P12,
	"444p10":   FormatYUV444P10,
	"444p12":   FormatYUV444P12,
}

// FrameReader yields raw frames from a stream.
type FrameReader interface {
	Caps() Caps
	// ReadFrame returns io.EOF after the last frame.
	ReadFrame() (*Frame, error)
}

// Y4MReader reads a YUV4MPEG2 stream.
type Y4MReader struct {
	r     *bufio.Reader
	caps  Caps
	count int64
}

// NewY4MReader parses the stream header.
func NewY4MReader(r io.Reader) (*Y4MReader, error) {
	br := bufio.NewReader(r)
	line, err := readHeaderLine(br)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != y4mMagic {
		return nil, fmt.Errorf("%w: missing %s signature", ErrInvalidStream, y4mMagic)
	}

	caps := Caps{Format: FormatYUV420P}
	for _, field := range fields[1:] {
		value := field[1:]
		switch field[0] {
		case 'W':
			caps.Width, err = strconv.Atoi(value)
		case 'H':
			caps.Height, err = strconv.Atoi(value)
		case 'F':
			caps.FPS, err = ParseFraction(value)
		case 'C':
			format, ok := y4mColorspaces[value]
			if !ok {
				return nil, fmt.Errorf("%w: unsupported colorspace %q", ErrInvalidStream, value)
			}
			caps.Format = format
		case 'I':
			if value != "p" && value != "?" {
				return nil, fmt.Errorf("%w: interlaced input %q", ErrInvalidStream, value)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bad header field %q: %v", ErrInvalidStream, field, err)
		}
	}

	if !caps.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCaps, caps)
	}

	return &Y4MReader{r: br, caps: caps}, nil
}

// Caps returns the stream caps from the header.
func (y *Y4MReader) Caps() Caps {
	return y.caps
}

// ReadFrame reads the next frame. PTS counts frames in a 1/fps time base.
func (y *Y4MReader) ReadFrame() (*Frame, error) {
	line, err := readHeaderLine(y.r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, y4mFrameMarker) {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrInvalidStream, y4mFrameMarker, line)
	}

	frame, err := readPlanes(y.r, y.caps)
	if err != nil {
		return nil, err
	}
	frame.PTS = y.count
	y.count++
	return frame, nil
}

// RawReader reads headerless, tightly packed frames of known caps.
type RawReader struct {
	r     io.Reader
	caps  Caps
	count int64
}

// NewRawReader creates a reader for raw frames.
func NewRawReader(r io.Reader, caps Caps) (*RawReader, error) {
	if !caps.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCaps, caps)
	}
	return &RawReader{r: r, caps: caps}, nil
}

func (r *RawReader) Caps() Caps {
	return r.caps
}

func (r *RawReader) ReadFrame() (*Frame, error) {
	frame, err := readPlanes(r.r, r.caps)
	if err != nil {
		return nil, err
	}
	frame.PTS = r.count
	r.count++
	return frame, nil
}

func readPlanes(r io.Reader, caps Caps) (*Frame, error) {
	frame, err := NewFrame(caps)
	if err != nil {
		return nil, err
	}
	for plane, data := range frame.Planes {
		n, err := io.ReadFull(r, data)
		if err == io.EOF && plane == 0 {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: plane %d truncated after %d bytes", ErrShortFrame, plane, n)
		}
	}
	return frame, nil
}

func readHeaderLine(r *bufio.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err == io.EOF && buf.Len() == 0 {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidStream, err)
		}
		if b == '\n' {
			return buf.String(), nil
		}
		if buf.Len() >= y4mMaxHeader {
			return "", fmt.Errorf("%w: header line too long", ErrInvalidStream)
		}
		buf.WriteByte(b)
	}
}
