// Package ivf reads and writes the IVF container, the simple frame-stream
// format used by the libvpx tools for raw VP8/VP9 bitstreams.
//
// A file is a 32 byte header followed by frames, each prefixed with a 12
// byte header holding the frame size and its timestamp in the file's time
// base. All fields are little endian. Reading is delegated to pion's
// ivfreader; the writer is local because it takes encoded frames rather
// than RTP packets and records the real picture size.
package ivf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/sirupsen/logrus"
)

const (
	signature       = "DKIF"
	fileHeaderSize  = 32
	frameHeaderSize = 12
)

var (
	// ErrInvalidHeader is returned when the file header cannot be parsed.
	ErrInvalidHeader = errors.New("invalid IVF header")
	// ErrTruncated is returned when a frame ends before its declared size.
	ErrTruncated = errors.New("truncated IVF frame")
	// ErrUnsupportedCodec is returned for codecs without a FourCC.
	ErrUnsupportedCodec = errors.New("unsupported codec for IVF")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ivf writer closed")
)

var fourCCs = map[video.CodecID]string{
	video.CodecVP8: "VP80",
	video.CodecVP9: "VP90",
}

// FourCC returns the IVF codec tag for codec.
func FourCC(codec video.CodecID) (string, error) {
	cc, ok := fourCCs[codec]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
	return cc, nil
}

// CodecForFourCC is the inverse of FourCC.
func CodecForFourCC(cc string) (video.CodecID, error) {
	for codec, v := range fourCCs {
		if v == cc {
			return codec, nil
		}
	}
	return video.CodecNone, fmt.Errorf("%w: %q", ErrUnsupportedCodec, cc)
}

// FileHeader is the IVF stream header.
type FileHeader struct {
	Codec      video.CodecID
	Width      int
	Height     int
	TimeBase   video.Fraction
	FrameCount uint32
}

func (h FileHeader) marshal() ([]byte, error) {
	cc, err := FourCC(h.Codec)
	if err != nil {
		return nil, err
	}
	// The header stores the rate as (den, num) of the time base.
	b := make([]byte, fileHeaderSize)
	copy(b[0:4], signature)
	binary.LittleEndian.PutUint16(b[4:], 0)
	binary.LittleEndian.PutUint16(b[6:], fileHeaderSize)
	copy(b[8:12], cc)
	binary.LittleEndian.PutUint16(b[12:], uint16(h.Width))
	binary.LittleEndian.PutUint16(b[14:], uint16(h.Height))
	binary.LittleEndian.PutUint32(b[16:], uint32(h.TimeBase.Den))
	binary.LittleEndian.PutUint32(b[20:], uint32(h.TimeBase.Num))
	binary.LittleEndian.PutUint32(b[24:], h.FrameCount)
	return b, nil
}

// Writer writes compressed packets to an IVF stream. The file header is
// written before the first frame using the caps and time base of that
// packet. When the destination is an io.WriteSeeker, Close patches the
// frame count into the header.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	header  FileHeader
	started bool
	closed  bool
	frames  uint32
	bytes   uint64
}

// NewWriter creates a writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePacket appends one frame. Header packets are not stored; VP8 and VP9
// carry their configuration in-band.
func (w *Writer) WritePacket(pkt video.CompressedPacket) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if pkt.IsHeader() {
		return nil
	}

	if !w.started {
		if err := w.startLocked(pkt); err != nil {
			return err
		}
	}

	pts := pkt.PTS
	if pkt.TimeBase.IsValid() && pkt.TimeBase != w.header.TimeBase {
		pts = video.Rescale(pts, pkt.TimeBase, w.header.TimeBase)
	}

	var fh [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(fh[0:], uint32(len(pkt.Data)))
	binary.LittleEndian.PutUint64(fh[4:], uint64(pts))
	if _, err := w.w.Write(fh[:]); err != nil {
		return fmt.Errorf("failed to write IVF frame header: %w", err)
	}
	if _, err := w.w.Write(pkt.Data); err != nil {
		return fmt.Errorf("failed to write IVF frame: %w", err)
	}

	w.frames++
	w.bytes += uint64(len(pkt.Data))
	return nil
}

func (w *Writer) startLocked(pkt video.CompressedPacket) error {
	tb := pkt.TimeBase
	if !tb.IsValid() {
		tb = pkt.Caps.FPS.Invert()
	}
	if !tb.IsValid() {
		tb = video.Fraction{Num: 1, Den: 30}
	}
	w.header = FileHeader{
		Codec:    pkt.Caps.Codec,
		Width:    pkt.Caps.Width,
		Height:   pkt.Caps.Height,
		TimeBase: tb,
	}
	b, err := w.header.marshal()
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("failed to write IVF header: %w", err)
	}
	w.started = true

	logrus.WithFields(logrus.Fields{
		"function":  "Writer.WritePacket",
		"codec":     w.header.Codec,
		"width":     w.header.Width,
		"height":    w.header.Height,
		"time_base": w.header.TimeBase.String(),
	}).Info("IVF stream started")
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Header returns the stream header. It is zero until the first frame.
func (w *Writer) Header() FileHeader {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := w.header
	h.FrameCount = w.frames
	return h
}

// Close finalizes the header when the destination can seek, then closes
// the destination if it is an io.Closer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if ws, ok := w.w.(io.WriteSeeker); ok && w.started {
		if err := w.patchFrameCountLocked(ws); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Writer.Close",
		"frames":   w.frames,
		"bytes":    w.bytes,
	}).Info("IVF stream closed")

	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (w *Writer) patchFrameCountLocked(ws io.WriteSeeker) error {
	end, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to locate IVF end: %w", err)
	}
	if _, err := ws.Seek(24, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek IVF header: %w", err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w.frames)
	if _, err := ws.Write(b[:]); err != nil {
		return fmt.Errorf("failed to update IVF frame count: %w", err)
	}
	_, err = ws.Seek(end, io.SeekStart)
	return err
}
