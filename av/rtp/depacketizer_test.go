package rtp

import (
	"testing"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendFrames(t *testing.T, codec video.CodecID, ssrc uint32, sizes ...int) *datagramRecorder {
	t.Helper()
	rec := &datagramRecorder{}
	s, err := NewSink(rec, codec, SinkConfig{MTU: 64, SSRC: ssrc})
	require.NoError(t, err)
	for i, size := range sizes {
		require.NoError(t, s.WritePacket(framePacket(int64(i), size, byte(i+1))))
	}
	return rec
}

func TestNewDepacketizer(t *testing.T) {
	_, err := NewDepacketizer(video.CodecNone)
	assert.ErrorIs(t, err, ErrUnsupportedCodec)

	d, err := NewDepacketizer(video.CodecVP8)
	require.NoError(t, err)
	_, ok := d.SSRC()
	assert.False(t, ok)
}

func TestDepacketizerRejectsGarbage(t *testing.T) {
	d, err := NewDepacketizer(video.CodecVP8)
	require.NoError(t, err)

	_, err = d.ProcessPacket(nil)
	assert.Error(t, err)
	_, err = d.ProcessPacket([]byte{0x80, 0x60})
	assert.Error(t, err)
}

func TestDepacketizerSSRCLock(t *testing.T) {
	d, err := NewDepacketizer(video.CodecVP8)
	require.NoError(t, err)

	first := sendFrames(t, video.CodecVP8, 1, 10)
	frame, err := d.ProcessPacket(first.datagrams[0])
	require.NoError(t, err)
	require.NotNil(t, frame)

	ssrc, ok := d.SSRC()
	assert.True(t, ok)
	assert.Equal(t, uint32(1), ssrc)

	other := sendFrames(t, video.CodecVP8, 2, 10)
	_, err = d.ProcessPacket(other.datagrams[0])
	assert.ErrorIs(t, err, ErrSSRCMismatch)
}

func TestDepacketizerDropsBrokenFrame(t *testing.T) {
	for _, codec := range []video.CodecID{video.CodecVP8, video.CodecVP9} {
		t.Run(string(codec), func(t *testing.T) {
			rec := sendFrames(t, codec, 5, 200, 20)

			var firstFrame []int
			for i, raw := range rec.datagrams {
				p := &rtp.Packet{}
				require.NoError(t, p.Unmarshal(raw))
				firstFrame = append(firstFrame, i)
				if p.Marker {
					break
				}
			}
			require.Greater(t, len(firstFrame), 2)

			d, err := NewDepacketizer(codec)
			require.NoError(t, err)

			var frames []*Frame
			lost := 0
			for i, raw := range rec.datagrams {
				if i == 1 {
					continue
				}
				frame, err := d.ProcessPacket(raw)
				if err != nil {
					assert.ErrorIs(t, err, ErrFrameLost)
					lost++
					continue
				}
				if frame != nil {
					frames = append(frames, frame)
				}
			}

			assert.Equal(t, len(firstFrame)-2, lost)
			require.Len(t, frames, 1)
			assert.Len(t, frames[0].Data, 20)
			assert.Equal(t, byte(2), frames[0].Data[0])
		})
	}
}
