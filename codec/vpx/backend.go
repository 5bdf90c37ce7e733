package vpx

// Interface is a codec backend, the Go counterpart of vpx_codec_iface_t.
//
// Implementations hand out independent contexts; an Interface value itself
// holds no per-stream state and may be shared.
type Interface interface {
	// Name identifies the backend in logs, e.g. "libvpx-vp9".
	Name() string
	// Bitstream reports which compressed format the backend produces.
	Bitstream() Bitstream
	// DefaultConfig returns the backend's default encoder configuration.
	DefaultConfig() (EncoderConfig, error)
	// Init creates an encoder context for cfg.
	Init(cfg EncoderConfig, flags CodecFlags) (Context, error)
	// AllocImage allocates a raw image the backend can encode from.
	AllocImage(format ImgFmt, width, height, align int) (*Image, error)
}

// Bitstream is the compressed format produced by a backend.
type Bitstream int

const (
	// BitstreamAny is reported by backends that produce whatever format the
	// caller configures them for.
	BitstreamAny Bitstream = iota
	BitstreamVP8
	BitstreamVP9
)

func (b Bitstream) String() string {
	switch b {
	case BitstreamAny:
		return "any"
	case BitstreamVP8:
		return "vp8"
	case BitstreamVP9:
		return "vp9"
	default:
		return "unknown"
	}
}

// Context is a live encoder instance. It is not safe for concurrent use.
type Context interface {
	// Control applies a codec control.
	Control(id ControlID, value int) error
	// Encode submits img. A nil img flushes frames held for lookahead.
	Encode(img *Image, pts int64, duration uint64, flags EncodeFlags, deadline Deadline) error
	// NextPacket returns the next packet produced by the last Encode call,
	// or nil once iter has visited all of them.
	NextPacket(iter *Iterator) *CxPacket
	// GlobalHeaders returns out-of-band stream headers, if the codec has any.
	GlobalHeaders() []byte
	// Config returns the configuration the context was created with.
	Config() EncoderConfig
	// Destroy releases the context. Further calls fail with ErrDestroyed.
	Destroy() error
}

// Iterator walks the packets of one Encode call. The zero value starts at
// the first packet.
type Iterator struct {
	pos int
}

// packetList is the shared NextPacket implementation for contexts that
// collect their output eagerly.
type packetList []CxPacket

func (l packetList) next(iter *Iterator) *CxPacket {
	if iter == nil || iter.pos >= len(l) {
		return nil
	}
	pkt := &l[iter.pos]
	iter.pos++
	return pkt
}
