package vpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

func TestCopyFrameClampsToDestinationStride(t *testing.T) {
	caps := video.Caps{Format: video.FormatYUV420P, Width: 4, Height: 4}
	src := &video.Frame{
		Caps:    caps,
		Planes:  [][]byte{make([]byte, 8*4), make([]byte, 8*2), make([]byte, 8*2)},
		Strides: []int{8, 8, 8},
	}
	for plane := range src.Planes {
		for i := range src.Planes[plane] {
			src.Planes[plane][i] = byte(plane*100 + i)
		}
	}

	img := &codec.Image{
		Format: codec.ImgFmtI420,
		Width:  4,
		Height: 4,
		Planes: [][]byte{make([]byte, 6*4), make([]byte, 3*2), make([]byte, 3*2)},
		Stride: []int{6, 3, 3},
	}

	copyFrame(img, src)

	for y := 0; y < 4; y++ {
		assert.Equal(t, src.Planes[0][y*8:y*8+6], img.Planes[0][y*6:y*6+6], "luma row %d", y)
	}
	for plane := 1; plane < 3; plane++ {
		for ys := 0; ys < 2; ys++ {
			assert.Equal(t, src.Planes[plane][ys*8:ys*8+3], img.Planes[plane][ys*3:ys*3+3], "plane %d row %d", plane, ys)
		}
	}
}

func TestCopyFrameLeavesStridePaddingUntouched(t *testing.T) {
	caps := video.Caps{Format: video.FormatNV12, Width: 4, Height: 3}
	src, err := video.NewFrame(caps)
	require.NoError(t, err)
	for plane := range src.Planes {
		for i := range src.Planes[plane] {
			src.Planes[plane][i] = 1
		}
	}

	img, err := codec.AllocImage(codec.ImgFmtNV12, 4, 3, 16)
	require.NoError(t, err)
	for plane := range img.Planes {
		for i := range img.Planes[plane] {
			img.Planes[plane][i] = 0xEE
		}
	}

	copyFrame(img, src)

	for plane := range img.Planes {
		for row := 0; row < img.PlaneRows(plane); row++ {
			line := img.Planes[plane][row*img.Stride[plane] : (row+1)*img.Stride[plane]]
			for x, v := range line {
				if x < src.LineSize(plane) {
					assert.Equal(t, byte(1), v, "plane %d row %d col %d", plane, row, x)
				} else {
					assert.Equal(t, byte(0xEE), v, "plane %d row %d col %d", plane, row, x)
				}
			}
		}
	}
}

func TestPacketEmission(t *testing.T) {
	enc, sink := newTestEncoder(t, VariantVP9, codec.PassthroughOptions{EmitStats: true})
	enc.SetGOP(100)
	activate(t, enc)

	for i := int64(0); i < 4; i++ {
		frame := testFrame(t, testCaps, i)
		frame.ID = 99
		frame.Index = 2
		require.True(t, enc.Push(frame))
	}

	packets := sink.Packets()
	require.Len(t, packets, 4, "stats packets are not forwarded")

	for i, pkt := range packets {
		assert.Equal(t, int64(i), pkt.PTS)
		assert.Equal(t, pkt.PTS, pkt.DTS)
		assert.Equal(t, int64(1), pkt.Duration)
		assert.Equal(t, video.Fraction{Num: 1, Den: 30}, pkt.TimeBase)
		assert.Equal(t, int64(99), pkt.ID)
		assert.Equal(t, 2, pkt.Index)
		assert.Equal(t, enc.OutputCaps(), pkt.Caps)
		assert.NotEmpty(t, pkt.Data)
	}

	// 100 ms at 30 fps rounds to a keyframe every 3 frames.
	assert.True(t, packets[0].IsKeyFrame())
	assert.False(t, packets[1].IsKeyFrame())
	assert.False(t, packets[2].IsKeyFrame())
	assert.True(t, packets[3].IsKeyFrame())

	stats := enc.Stats()
	assert.Equal(t, uint64(4), stats.FramesEncoded)
	assert.Equal(t, uint64(4), stats.PacketsOut)
	assert.Equal(t, uint64(2), stats.KeyFrames)
}

func TestPacketPayloadIsCopied(t *testing.T) {
	enc, sink := newTestEncoder(t, VariantVP8, codec.PassthroughOptions{})
	activate(t, enc)

	require.True(t, enc.Push(testFrame(t, testCaps, 0)))
	require.True(t, enc.Push(testFrame(t, testCaps, 1)))

	packets := sink.Packets()
	require.Len(t, packets, 2)
	assert.NotEqual(t, packets[0].Data, packets[1].Data)
	assert.Equal(t, byte(16), packets[0].Data[0])
}

func TestEncodeErrorIsNotFatal(t *testing.T) {
	backend := &faultyBackend{
		Interface: codec.NewPassthrough("p", codec.PassthroughOptions{}),
		encodeErr: map[int64]error{1: &codec.Error{Code: codec.CodecCorruptFrame}},
	}
	enc := NewEncoder(VariantVP8, backend)
	sink := &packetRecorder{}
	enc.SetSink(sink)
	enc.SetInputCaps(testCaps)
	require.True(t, enc.SetState(StateActive))

	for i := int64(0); i < 3; i++ {
		assert.True(t, enc.Push(testFrame(t, testCaps, i)))
	}

	assert.Equal(t, StateActive, enc.State())
	packets := sink.Packets()
	require.Len(t, packets, 2)
	assert.Equal(t, int64(0), packets[0].PTS)
	assert.Equal(t, int64(2), packets[1].PTS)
	assert.Equal(t, uint64(1), enc.Stats().EncodeErrors)
}

func TestPushDropsWhenNotActive(t *testing.T) {
	enc, sink := newTestEncoder(t, VariantVP8, codec.PassthroughOptions{})

	assert.False(t, enc.Push(testFrame(t, testCaps, 0)))

	require.True(t, enc.SetState(StateReady))
	assert.False(t, enc.Push(testFrame(t, testCaps, 1)))

	// Ready to Active does not initialize the codec.
	require.True(t, enc.SetState(StateActive))
	assert.False(t, enc.Push(testFrame(t, testCaps, 2)))

	require.True(t, enc.SetState(StateIdle))
	activate(t, enc)
	require.True(t, enc.SetState(StateReady))
	assert.False(t, enc.Push(testFrame(t, testCaps, 3)))
	require.True(t, enc.SetState(StateActive))
	assert.True(t, enc.Push(testFrame(t, testCaps, 4)))

	assert.Len(t, sink.Packets(), 1)
	assert.False(t, enc.Push(nil))
}

func TestPushPacesDuplicateTimestamps(t *testing.T) {
	enc, sink := newTestEncoder(t, VariantVP8, codec.PassthroughOptions{})
	activate(t, enc)

	assert.True(t, enc.Push(testFrame(t, testCaps, 0)))
	assert.False(t, enc.Push(testFrame(t, testCaps, 0)))
	assert.True(t, enc.Push(testFrame(t, testCaps, 1)))

	assert.Len(t, sink.Packets(), 2)
	assert.Equal(t, uint64(1), enc.Stats().FramesDiscarded)
}

func TestPushConvertsToNegotiatedFormat(t *testing.T) {
	enc, sink := newTestEncoder(t, VariantVP8, codec.PassthroughOptions{})
	enc.SetInputCaps(video.Caps{Format: video.FormatYUV444P, Width: 16, Height: 16, FPS: video.Fraction{Num: 30, Den: 1}})
	ctx := activate(t, enc)

	assert.Equal(t, codec.ImgFmtI420, enc.img.Format)

	frame := testFrame(t, video.Caps{Format: video.FormatYUV444P, Width: 16, Height: 16, FPS: video.Fraction{Num: 30, Den: 1}}, 0)
	require.True(t, enc.Push(frame))

	packets := sink.Packets()
	require.Len(t, packets, 1)
	// width, height, then 16*16 luma + 2 * 8*8 chroma bytes.
	assert.Len(t, packets[0].Data, 4+16*16+2*8*8)
	assert.Equal(t, uint(16), ctx.Config().Width)

	bad := testFrame(t, video.Caps{Format: video.FormatYUV420P10, Width: 16, Height: 16}, 1)
	assert.False(t, enc.Push(bad))
	assert.Equal(t, uint64(1), enc.Stats().FramesDropped)
}

func TestSinkErrorsAreCounted(t *testing.T) {
	enc, _ := newTestEncoder(t, VariantVP8, codec.PassthroughOptions{})
	enc.SetSink(PacketSinkFunc(func(video.CompressedPacket) error { return errInjected }))
	activate(t, enc)

	require.True(t, enc.Push(testFrame(t, testCaps, 0)))
	stats := enc.Stats()
	assert.Equal(t, uint64(1), stats.SinkErrors)
	assert.Equal(t, uint64(1), stats.PacketsOut)
}

func TestCapsChangeWhileActiveKeepsSession(t *testing.T) {
	enc, sink := newTestEncoder(t, VariantVP8, codec.PassthroughOptions{})
	ctx := activate(t, enc)

	var notified []video.CompressedCaps
	enc.OnOutputCapsChanged(func(c video.CompressedCaps) { notified = append(notified, c) })

	small := video.Caps{Format: video.FormatYUV420P, Width: 8, Height: 8, FPS: video.Fraction{Num: 30, Den: 1}}
	enc.SetInputCaps(small)
	require.Len(t, notified, 1)
	assert.Equal(t, 8, enc.OutputCaps().Width)
	assert.Equal(t, 8, enc.ConvertedCaps().Width)

	require.True(t, enc.Push(testFrame(t, testCaps, 0)))
	packets := sink.Packets()
	require.Len(t, packets, 1)
	assert.Equal(t, 16, packets[0].Caps.Width)
	assert.Equal(t, 16, packets[0].Caps.Height)
	assert.Len(t, packets[0].Data, 4+16*16+2*8*8)
	assert.Equal(t, uint(16), ctx.Config().Width)
	assert.Equal(t, 16, enc.img.Width)

	require.NoError(t, enc.SetStateErr(StateIdle))
	activate(t, enc)

	require.True(t, enc.Push(testFrame(t, testCaps, 1)))
	packets = sink.Packets()
	require.Len(t, packets, 2)
	assert.Equal(t, 8, packets[1].Caps.Width)
	assert.Equal(t, 8, packets[1].Caps.Height)
	assert.Len(t, packets[1].Data, 4+8*8+2*4*4)
}
