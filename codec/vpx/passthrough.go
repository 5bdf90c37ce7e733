package vpx

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PassthroughOptions tune the passthrough backend.
type PassthroughOptions struct {
	// Lookahead is the number of frames held back before any output is
	// produced, mimicking the lag_in_frames buffering of libvpx.
	Lookahead int
	// EmitStats adds a PacketKindStats packet after every frame packet.
	EmitStats bool
	// Headers is returned by GlobalHeaders.
	Headers []byte
	// Bitstream pins the backend to one codec. The zero value accepts
	// either.
	Bitstream Bitstream
}

// passthrough is a pure Go backend that stores raw planes as "compressed"
// data. It keeps the Interface contract (configuration validation, key frame
// spacing, lookahead, flushing) so the adapter can run without libvpx.
type passthrough struct {
	name string
	opts PassthroughOptions
}

// NewPassthrough creates a passthrough backend.
//
// Every output chunk is laid out as [width:2][height:2] followed by the
// visible bytes of each plane, row by row.
func NewPassthrough(name string, opts PassthroughOptions) Interface {
	if opts.Lookahead < 0 {
		opts.Lookahead = 0
	}
	return &passthrough{name: name, opts: opts}
}

func (p *passthrough) Name() string {
	return p.name
}

func (p *passthrough) Bitstream() Bitstream {
	return p.opts.Bitstream
}

func (p *passthrough) DefaultConfig() (EncoderConfig, error) {
	return EncoderConfig{
		Threads:       1,
		Width:         320,
		Height:        240,
		BitDepth:      BitDepth8,
		InputBitDepth: 8,
		TimeBase:      Rational{Num: 1, Den: 30},
		Pass:          PassOne,
		LagInFrames:   uint(p.opts.Lookahead),
		EndUsage:      RateControlVBR,
		TargetBitrate: 256,
		KFMaxDist:     128,
	}, nil
}

func (p *passthrough) Init(cfg EncoderConfig, flags CodecFlags) (Context, error) {
	logrus.WithFields(logrus.Fields{
		"function": "passthrough.Init",
		"backend":  p.name,
		"width":    cfg.Width,
		"height":   cfg.Height,
		"bitrate":  cfg.TargetBitrate,
	}).Debug("Creating passthrough encoder context")

	switch {
	case cfg.Width == 0 || cfg.Height == 0:
		return nil, &Error{Code: CodecInvalidParam, Detail: fmt.Sprintf("Invalid frame size %dx%d", cfg.Width, cfg.Height)}
	case cfg.TimeBase.Num <= 0 || cfg.TimeBase.Den <= 0:
		return nil, &Error{Code: CodecInvalidParam, Detail: "Invalid timebase"}
	case cfg.BitDepth > BitDepth8 && flags&UseHighBitDepth == 0:
		return nil, &Error{Code: CodecIncapable, Detail: "High bit depth requires UseHighBitDepth"}
	}

	if cfg.KFMaxDist == 0 {
		cfg.KFMaxDist = 1
	}

	return &PassthroughContext{
		cfg:      cfg,
		flags:    flags,
		opts:     p.opts,
		controls: make(map[ControlID]int),
	}, nil
}

func (p *passthrough) AllocImage(format ImgFmt, width, height, align int) (*Image, error) {
	return AllocImage(format, width, height, align)
}

// PassthroughContext is the Context created by the passthrough backend.
// Its extra accessors let callers inspect what the adapter configured.
type PassthroughContext struct {
	cfg       EncoderConfig
	flags     CodecFlags
	opts      PassthroughOptions
	controls  map[ControlID]int
	pending   []CxPacket
	out       packetList
	frames    int
	destroyed bool
}

// Control records the value; unknown controls are accepted.
func (c *PassthroughContext) Control(id ControlID, value int) error {
	if c.destroyed {
		return ErrDestroyed
	}
	c.controls[id] = value
	return nil
}

// Encode packs img into a frame packet. Packets are released once more than
// Lookahead frames are pending; a nil img releases everything pending.
func (c *PassthroughContext) Encode(img *Image, pts int64, duration uint64, flags EncodeFlags, deadline Deadline) error {
	if c.destroyed {
		return ErrDestroyed
	}

	c.out = nil

	if img == nil {
		for _, pkt := range c.pending {
			c.emit(pkt)
		}
		c.pending = nil
		return nil
	}

	if uint(img.Width) != c.cfg.Width || uint(img.Height) != c.cfg.Height {
		return &Error{
			Code: CodecInvalidParam,
			Detail: fmt.Sprintf("Frame size %dx%d does not match configured %dx%d",
				img.Width, img.Height, c.cfg.Width, c.cfg.Height),
		}
	}

	var frameFlags FrameFlags
	if c.frames%int(c.cfg.KFMaxDist) == 0 || flags&ForceKeyFrame != 0 {
		frameFlags |= FrameIsKey
	}
	c.frames++

	c.pending = append(c.pending, CxPacket{
		Kind:     PacketKindFrame,
		Data:     packImage(img),
		PTS:      pts,
		Duration: duration,
		Flags:    frameFlags,
	})

	for len(c.pending) > c.opts.Lookahead {
		c.emit(c.pending[0])
		c.pending = c.pending[1:]
	}

	return nil
}

func (c *PassthroughContext) emit(pkt CxPacket) {
	c.out = append(c.out, pkt)
	if c.opts.EmitStats {
		c.out = append(c.out, CxPacket{Kind: PacketKindStats, Data: []byte{0}, PTS: pkt.PTS})
	}
}

func (c *PassthroughContext) NextPacket(iter *Iterator) *CxPacket {
	return c.out.next(iter)
}

func (c *PassthroughContext) GlobalHeaders() []byte {
	if len(c.opts.Headers) == 0 {
		return nil
	}
	return append([]byte(nil), c.opts.Headers...)
}

func (c *PassthroughContext) Config() EncoderConfig {
	return c.cfg
}

func (c *PassthroughContext) Destroy() error {
	if c.destroyed {
		return ErrDestroyed
	}
	c.destroyed = true
	c.pending = nil
	c.out = nil
	return nil
}

// Controls returns a copy of every control applied so far.
func (c *PassthroughContext) Controls() map[ControlID]int {
	controls := make(map[ControlID]int, len(c.controls))
	for id, v := range c.controls {
		controls[id] = v
	}
	return controls
}

// Flags returns the codec flags passed to Init.
func (c *PassthroughContext) Flags() CodecFlags {
	return c.flags
}

// Pending returns the number of frames held for lookahead.
func (c *PassthroughContext) Pending() int {
	return len(c.pending)
}

// Destroyed reports whether Destroy has been called.
func (c *PassthroughContext) Destroyed() bool {
	return c.destroyed
}

// packImage serializes the visible area of every plane.
func packImage(img *Image) []byte {
	size := 4
	widths := make([]int, len(img.Planes))
	for i := range img.Planes {
		widths[i] = visibleRowBytes(img, i)
		size += widths[i] * img.PlaneRows(i)
	}

	data := make([]byte, size)
	binary.LittleEndian.PutUint16(data[0:], uint16(img.Width))
	binary.LittleEndian.PutUint16(data[2:], uint16(img.Height))

	offset := 4
	for i, plane := range img.Planes {
		for y := 0; y < img.PlaneRows(i); y++ {
			row := plane[y*img.Stride[i]:]
			offset += copy(data[offset:offset+widths[i]], row[:widths[i]])
		}
	}

	return data
}

func visibleRowBytes(img *Image, plane int) int {
	bps := 1
	if img.Format.HighBitDepth() {
		bps = 2
	}
	if plane == 0 {
		return img.Width * bps
	}
	xs, _ := img.Format.ChromaShift()
	chromaWidth := (img.Width + (1 << xs) - 1) >> xs
	if img.Format == ImgFmtNV12 {
		return 2 * chromaWidth * bps
	}
	return chromaWidth * bps
}
