package rtp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// datagramRecorder keeps every Write as a separate datagram.
type datagramRecorder struct {
	datagrams [][]byte
	failAfter int
	closed    bool
}

var errWriteFailed = errors.New("write failed")

func (r *datagramRecorder) Write(p []byte) (int, error) {
	if r.failAfter > 0 && len(r.datagrams) >= r.failAfter {
		return 0, errWriteFailed
	}
	r.datagrams = append(r.datagrams, append([]byte(nil), p...))
	return len(p), nil
}

func (r *datagramRecorder) Close() error {
	r.closed = true
	return nil
}

func (r *datagramRecorder) packets(t *testing.T) []*rtp.Packet {
	t.Helper()
	out := make([]*rtp.Packet, 0, len(r.datagrams))
	for _, d := range r.datagrams {
		p := &rtp.Packet{}
		require.NoError(t, p.Unmarshal(d))
		out = append(out, p)
	}
	return out
}

func framePacket(pts int64, size int, fill byte) video.CompressedPacket {
	return video.CompressedPacket{
		Data:     bytes.Repeat([]byte{fill}, size),
		PTS:      pts,
		DTS:      pts,
		Duration: 1,
		TimeBase: video.Fraction{Num: 1, Den: 30},
	}
}

func TestNewSink(t *testing.T) {
	tests := []struct {
		name    string
		w       *datagramRecorder
		codec   video.CodecID
		cfg     SinkConfig
		wantErr error
	}{
		{"vp8 defaults", &datagramRecorder{}, video.CodecVP8, SinkConfig{}, nil},
		{"vp9 custom", &datagramRecorder{}, video.CodecVP9, SinkConfig{MTU: 500, PayloadType: 100, SSRC: 42}, nil},
		{"mtu too small", &datagramRecorder{}, video.CodecVP8, SinkConfig{MTU: 12}, ErrInvalidMTU},
		{"no codec", &datagramRecorder{}, video.CodecNone, SinkConfig{}, ErrUnsupportedCodec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSink(tt.w, tt.codec, tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, s.SSRC())
			if tt.cfg.SSRC != 0 {
				assert.Equal(t, tt.cfg.SSRC, s.SSRC())
			}
			if tt.cfg.PayloadType != 0 {
				assert.Equal(t, tt.cfg.PayloadType, s.PayloadType())
			} else {
				assert.Equal(t, DefaultPayloadType, s.PayloadType())
			}
		})
	}

	t.Run("nil writer", func(t *testing.T) {
		_, err := NewSink(nil, video.CodecVP8, SinkConfig{})
		assert.Error(t, err)
	})
}

func TestSinkFragmentsAndReassembles(t *testing.T) {
	for _, codec := range []video.CodecID{video.CodecVP8, video.CodecVP9} {
		t.Run(string(codec), func(t *testing.T) {
			rec := &datagramRecorder{}
			s, err := NewSink(rec, codec, SinkConfig{MTU: 100, SSRC: 7})
			require.NoError(t, err)

			pkt := framePacket(0, 500, 0xAB)
			require.NoError(t, s.WritePacket(pkt))

			packets := rec.packets(t)
			require.Greater(t, len(packets), 1)
			for i, p := range packets {
				assert.LessOrEqual(t, len(rec.datagrams[i]), 100)
				assert.Equal(t, uint32(7), p.SSRC)
				assert.Equal(t, DefaultPayloadType, p.PayloadType)
				assert.Equal(t, packets[0].Timestamp, p.Timestamp)
				assert.Equal(t, i == len(packets)-1, p.Marker)
				if i > 0 {
					assert.Equal(t, packets[i-1].SequenceNumber+1, p.SequenceNumber)
				}
			}

			d, err := NewDepacketizer(codec)
			require.NoError(t, err)
			var frame *Frame
			for i, raw := range rec.datagrams {
				frame, err = d.ProcessPacket(raw)
				require.NoError(t, err)
				if i < len(rec.datagrams)-1 {
					assert.Nil(t, frame)
				}
			}
			require.NotNil(t, frame)
			assert.Equal(t, pkt.Data, frame.Data)
			assert.Equal(t, packets[0].Timestamp, frame.Timestamp)

			stats := s.Statistics()
			assert.Equal(t, uint64(1), stats.FramesSent)
			assert.Equal(t, uint64(len(packets)), stats.PacketsSent)
		})
	}
}

func TestSinkTimestamps(t *testing.T) {
	rec := &datagramRecorder{}
	s, err := NewSink(rec, video.CodecVP8, SinkConfig{})
	require.NoError(t, err)

	require.NoError(t, s.WritePacket(framePacket(0, 10, 1)))
	require.NoError(t, s.WritePacket(framePacket(1, 10, 2)))
	require.NoError(t, s.WritePacket(framePacket(4, 10, 3)))

	packets := rec.packets(t)
	require.Len(t, packets, 3)
	assert.Equal(t, uint32(3000), packets[1].Timestamp-packets[0].Timestamp)
	assert.Equal(t, uint32(9000), packets[2].Timestamp-packets[1].Timestamp)
	assert.Equal(t, packets[2].Timestamp, s.Statistics().LastTime)

	other := framePacket(0, 10, 1)
	other.TimeBase = video.Fraction{Num: 1, Den: 1000}
	assert.Equal(t, s.Timestamp(0, video.Fraction{Num: 1, Den: 30})+90, s.Timestamp(1, other.TimeBase))
}

func TestSinkSkipsHeaders(t *testing.T) {
	rec := &datagramRecorder{}
	s, err := NewSink(rec, video.CodecVP9, SinkConfig{})
	require.NoError(t, err)

	hdr := framePacket(0, 16, 0)
	hdr.Flags = video.PacketFlagHeader
	require.NoError(t, s.WritePacket(hdr))
	assert.Empty(t, rec.datagrams)
	assert.Equal(t, uint64(1), s.Statistics().HeadersSkipped)

	assert.ErrorIs(t, s.WritePacket(video.CompressedPacket{}), ErrEmptyPayload)
}

func TestSinkWriteError(t *testing.T) {
	rec := &datagramRecorder{failAfter: 1}
	s, err := NewSink(rec, video.CodecVP8, SinkConfig{MTU: 64})
	require.NoError(t, err)

	err = s.WritePacket(framePacket(0, 300, 9))
	assert.ErrorIs(t, err, errWriteFailed)

	stats := s.Statistics()
	assert.Equal(t, uint64(1), stats.WriteErrors)
	assert.Equal(t, uint64(1), stats.PacketsSent)
	assert.Zero(t, stats.FramesSent)
}

func TestSinkClose(t *testing.T) {
	rec := &datagramRecorder{}
	s, err := NewSink(rec, video.CodecVP8, SinkConfig{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.True(t, rec.closed)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.WritePacket(framePacket(0, 10, 1)), ErrClosed)
}
