package rtp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSSRCMismatch is returned for packets from a foreign stream.
	ErrSSRCMismatch = errors.New("unexpected SSRC")
	// ErrFrameLost is returned when a gap in sequence numbers breaks the
	// frame being assembled.
	ErrFrameLost = errors.New("frame lost")
)

// Frame is one reassembled compressed picture.
type Frame struct {
	Data      []byte
	Timestamp uint32
}

// Depacketizer reassembles VP8/VP9 frames from RTP datagrams. It follows
// a single SSRC, locked to the first packet it sees.
type Depacketizer struct {
	mu         sync.Mutex
	codec      video.CodecID
	ssrc       uint32
	hasSSRC    bool
	lastSeq    uint16
	hasLastSeq bool
	timestamp  uint32
	buf        []byte
	inFrame    bool
}

// NewDepacketizer creates a depacketizer for the given codec.
func NewDepacketizer(codec video.CodecID) (*Depacketizer, error) {
	if codec != video.CodecVP8 && codec != video.CodecVP9 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
	logrus.WithFields(logrus.Fields{
		"function": "NewDepacketizer",
		"codec":    codec,
	}).Info("Creating RTP depacketizer")
	return &Depacketizer{codec: codec}, nil
}

func (d *Depacketizer) newPayloadPacket() interface {
	Unmarshal([]byte) ([]byte, error)
	IsPartitionHead([]byte) bool
} {
	if d.codec == video.CodecVP8 {
		return &codecs.VP8Packet{}
	}
	return &codecs.VP9Packet{}
}

// ProcessPacket consumes one RTP datagram. It returns a frame once the
// packet carrying the marker bit completes it, and nil otherwise.
func (d *Depacketizer) ProcessPacket(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("RTP data cannot be empty")
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Depacketizer.ProcessPacket",
			"error":    err.Error(),
		}).Warn("Failed to unmarshal RTP packet")
		return nil, fmt.Errorf("failed to unmarshal RTP packet: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasSSRC {
		d.ssrc = pkt.SSRC
		d.hasSSRC = true
	} else if pkt.SSRC != d.ssrc {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSSRCMismatch, pkt.SSRC, d.ssrc)
	}

	gap := d.hasLastSeq && pkt.SequenceNumber != d.lastSeq+1
	d.lastSeq = pkt.SequenceNumber
	d.hasLastSeq = true

	payloadPkt := d.newPayloadPacket()
	head := payloadPkt.IsPartitionHead(pkt.Payload)
	payload, err := payloadPkt.Unmarshal(pkt.Payload)
	if err != nil {
		d.reset()
		return nil, fmt.Errorf("failed to parse %s payload: %w", d.codec, err)
	}

	if gap && d.inFrame {
		logrus.WithFields(logrus.Fields{
			"function":  "Depacketizer.ProcessPacket",
			"sequence":  pkt.SequenceNumber,
			"timestamp": d.timestamp,
		}).Warn("Sequence gap, dropping partial frame")
		d.reset()
		if !head {
			return nil, ErrFrameLost
		}
	}

	if head && (!d.inFrame || pkt.Timestamp != d.timestamp) {
		d.buf = d.buf[:0]
		d.timestamp = pkt.Timestamp
		d.inFrame = true
	}
	if !d.inFrame || pkt.Timestamp != d.timestamp {
		d.reset()
		return nil, ErrFrameLost
	}

	d.buf = append(d.buf, payload...)
	if !pkt.Marker {
		return nil, nil
	}

	frame := &Frame{
		Data:      append([]byte(nil), d.buf...),
		Timestamp: d.timestamp,
	}
	d.reset()
	return frame, nil
}

// SSRC returns the stream being followed, if any.
func (d *Depacketizer) SSRC() (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ssrc, d.hasSSRC
}

func (d *Depacketizer) reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
}
