package ivf

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vpxenc/av/video"
)

// Reader reads frames from an IVF stream.
type Reader struct {
	r      *ivfreader.IVFReader
	header FileHeader
	index  int
}

// NewReader reads the file header from r.
func NewReader(r io.Reader) (*Reader, error) {
	ir, h, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if h.TimebaseNumerator == 0 {
		return nil, fmt.Errorf("%w: zero time base numerator", ErrInvalidHeader)
	}
	codec, err := CodecForFourCC(h.FourCC)
	if err != nil {
		return nil, err
	}

	header := FileHeader{
		Codec:  codec,
		Width:  int(h.Width),
		Height: int(h.Height),
		TimeBase: video.Fraction{
			Num: int64(h.TimebaseNumerator),
			Den: int64(h.TimebaseDenominator),
		},
		FrameCount: h.NumFrames,
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewReader",
		"codec":     header.Codec,
		"width":     header.Width,
		"height":    header.Height,
		"time_base": header.TimeBase.String(),
		"frames":    header.FrameCount,
	}).Debug("IVF stream opened")

	return &Reader{r: ir, header: header}, nil
}

// Header returns the stream header.
func (r *Reader) Header() FileHeader {
	return r.header
}

// ReadPacket returns the next frame, or io.EOF at a clean end of stream.
func (r *Reader) ReadPacket() (video.CompressedPacket, error) {
	data, fh, err := r.r.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		return video.CompressedPacket{}, io.EOF
	}
	if err != nil {
		return video.CompressedPacket{}, fmt.Errorf("%w: frame %d: %w", ErrTruncated, r.index, err)
	}

	pts := framePTS(fh.Timestamp, r.header.TimeBase)
	pkt := video.CompressedPacket{
		Caps: video.CompressedCaps{
			Codec:  r.header.Codec,
			Width:  r.header.Width,
			Height: r.header.Height,
			FPS:    r.header.TimeBase.Invert(),
		},
		Data:     data,
		PTS:      pts,
		DTS:      pts,
		Duration: 1,
		TimeBase: r.header.TimeBase,
		Index:    r.index,
	}
	r.index++
	return pkt, nil
}

// framePTS inverts ivfreader's timestamp, which is the stored pts times
// den/num rounded down. Rounding the inverse up restores the stored pts
// exactly whenever num <= den, i.e. for any rate of at least one frame per
// second.
func framePTS(ts uint64, tb video.Fraction) int64 {
	n := new(big.Int).Mul(new(big.Int).SetUint64(ts), big.NewInt(tb.Num))
	q, m := new(big.Int).QuoRem(n, big.NewInt(tb.Den), new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}
