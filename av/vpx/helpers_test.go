package vpx

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

var testCaps = video.Caps{
	Format: video.FormatYUV420P,
	Width:  16,
	Height: 16,
	FPS:    video.Fraction{Num: 30, Den: 1},
}

// packetRecorder is a PacketSink that keeps every packet.
type packetRecorder struct {
	mu      sync.Mutex
	packets []video.CompressedPacket
}

func (r *packetRecorder) WritePacket(pkt video.CompressedPacket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, pkt)
	return nil
}

func (r *packetRecorder) Packets() []video.CompressedPacket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]video.CompressedPacket(nil), r.packets...)
}

func newTestEncoder(t *testing.T, variant Variant, opts codec.PassthroughOptions) (*Encoder, *packetRecorder) {
	t.Helper()

	enc := NewEncoder(variant, codec.NewPassthrough("test-"+variant.Name(), opts))
	sink := &packetRecorder{}
	enc.SetSink(sink)
	enc.SetInputCaps(testCaps)
	return enc, sink
}

func activate(t *testing.T, enc *Encoder) *codec.PassthroughContext {
	t.Helper()

	require.NoError(t, enc.SetStateErr(StateActive))
	ctx, ok := enc.ctx.(*codec.PassthroughContext)
	require.True(t, ok, "unexpected context type %T", enc.ctx)
	return ctx
}

func testFrame(t *testing.T, caps video.Caps, pts int64) *video.Frame {
	t.Helper()

	frame, err := video.NewFrame(caps)
	require.NoError(t, err)
	for plane := range frame.Planes {
		for i := range frame.Planes[plane] {
			frame.Planes[plane][i] = byte(int(pts) + plane*16 + i)
		}
	}
	frame.PTS = pts
	return frame
}

// faultyBackend wraps another backend and injects failures.
type faultyBackend struct {
	codec.Interface

	defaultErr error
	initErr    error
	allocErr   error
	encodeErr  map[int64]error

	mu        sync.Mutex
	contexts  []*faultyContext
	destroyed int
}

func (b *faultyBackend) DefaultConfig() (codec.EncoderConfig, error) {
	if b.defaultErr != nil {
		return codec.EncoderConfig{}, b.defaultErr
	}
	return b.Interface.DefaultConfig()
}

func (b *faultyBackend) Init(cfg codec.EncoderConfig, flags codec.CodecFlags) (codec.Context, error) {
	if b.initErr != nil {
		return nil, b.initErr
	}
	ctx, err := b.Interface.Init(cfg, flags)
	if err != nil {
		return nil, err
	}
	fc := &faultyContext{Context: ctx, backend: b}
	b.mu.Lock()
	b.contexts = append(b.contexts, fc)
	b.mu.Unlock()
	return fc, nil
}

func (b *faultyBackend) AllocImage(format codec.ImgFmt, width, height, align int) (*codec.Image, error) {
	if b.allocErr != nil {
		return nil, b.allocErr
	}
	return b.Interface.AllocImage(format, width, height, align)
}

type faultyContext struct {
	codec.Context
	backend *faultyBackend
	failed  bool
}

func (c *faultyContext) Encode(img *codec.Image, pts int64, duration uint64, flags codec.EncodeFlags, deadline codec.Deadline) error {
	c.failed = false
	if img != nil {
		if err, ok := c.backend.encodeErr[pts]; ok {
			c.failed = true
			return err
		}
	}
	return c.Context.Encode(img, pts, duration, flags, deadline)
}

// NextPacket yields nothing after a failed Encode, like libvpx.
func (c *faultyContext) NextPacket(iter *codec.Iterator) *codec.CxPacket {
	if c.failed {
		return nil
	}
	return c.Context.NextPacket(iter)
}

func (c *faultyContext) Destroy() error {
	c.backend.mu.Lock()
	c.backend.destroyed++
	c.backend.mu.Unlock()
	return c.Context.Destroy()
}

var errInjected = errors.New("injected failure")
