package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/sirupsen/logrus"
)

// ClockRate is the RTP clock used for all video payloads.
const ClockRate = 90000

const (
	// DefaultMTU leaves room for IP and UDP headers on a 1500 byte link.
	DefaultMTU uint16 = 1200
	// DefaultPayloadType is the first dynamic payload type.
	DefaultPayloadType uint8 = 96

	rtpHeaderSize = 12
	minMTU        = rtpHeaderSize + 8
)

var (
	// ErrUnsupportedCodec is returned for codecs without an RTP payload format.
	ErrUnsupportedCodec = errors.New("unsupported codec for RTP")
	// ErrInvalidMTU is returned when the MTU cannot hold a payload header.
	ErrInvalidMTU = errors.New("MTU too small")
	// ErrEmptyPayload is returned for packets with no data.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("sink closed")
)

var clockTimeBase = video.Fraction{Num: 1, Den: ClockRate}

// SinkConfig tunes a Sink. Zero values pick the defaults; a zero SSRC is
// replaced by a random one.
type SinkConfig struct {
	MTU         uint16
	PayloadType uint8
	SSRC        uint32
}

// Statistics counts what a Sink has sent.
type Statistics struct {
	FramesSent     uint64
	PacketsSent    uint64
	BytesSent      uint64
	HeadersSkipped uint64
	WriteErrors    uint64
	LastTime       uint32
}

// Sink packetizes compressed VP8/VP9 frames into RTP and writes every RTP
// packet to an io.Writer, one Write per datagram.
type Sink struct {
	mu          sync.Mutex
	w           io.Writer
	codec       video.CodecID
	packetizer  rtp.Packetizer
	ssrc        uint32
	payloadType uint8
	mtu         uint16
	baseTime    uint32
	closed      bool
	stats       Statistics
}

// NewSink creates a sink for the given codec.
func NewSink(w io.Writer, codec video.CodecID, cfg SinkConfig) (*Sink, error) {
	logrus.WithFields(logrus.Fields{
		"function":     "NewSink",
		"codec":        codec,
		"mtu":          cfg.MTU,
		"payload_type": cfg.PayloadType,
	}).Info("Creating RTP sink")

	if w == nil {
		return nil, fmt.Errorf("writer cannot be nil")
	}
	if cfg.MTU == 0 {
		cfg.MTU = DefaultMTU
	}
	if cfg.MTU < minMTU {
		logrus.WithFields(logrus.Fields{
			"function": "NewSink",
			"mtu":      cfg.MTU,
		}).Error("Invalid MTU")
		return nil, fmt.Errorf("%w: %d", ErrInvalidMTU, cfg.MTU)
	}
	if cfg.PayloadType == 0 {
		cfg.PayloadType = DefaultPayloadType
	}
	if cfg.PayloadType > 127 {
		return nil, fmt.Errorf("payload type %d out of range", cfg.PayloadType)
	}

	payloader, err := payloaderFor(codec)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSink",
			"codec":    codec,
		}).Error("No payloader for codec")
		return nil, err
	}

	if cfg.SSRC == 0 {
		if cfg.SSRC, err = randomUint32(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "NewSink",
				"error":    err.Error(),
			}).Error("Failed to generate SSRC")
			return nil, fmt.Errorf("failed to generate SSRC: %w", err)
		}
	}
	baseTime, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to generate initial timestamp: %w", err)
	}

	s := &Sink{
		w:           w,
		codec:       codec,
		ssrc:        cfg.SSRC,
		payloadType: cfg.PayloadType,
		mtu:         cfg.MTU,
		baseTime:    baseTime,
		packetizer: rtp.NewPacketizer(cfg.MTU, cfg.PayloadType, cfg.SSRC,
			payloader, rtp.NewRandomSequencer(), ClockRate),
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSink",
		"ssrc":     s.ssrc,
		"codec":    codec,
	}).Info("RTP sink created successfully")

	return s, nil
}

func payloaderFor(codec video.CodecID) (rtp.Payloader, error) {
	switch codec {
	case video.CodecVP8:
		return &codecs.VP8Payloader{EnablePictureID: true}, nil
	case video.CodecVP9:
		// Non-flexible mode parses the uncompressed VP9 header, which only
		// works for real bitstreams.
		return &codecs.VP9Payloader{FlexibleMode: true}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// SSRC returns the synchronization source of the stream.
func (s *Sink) SSRC() uint32 {
	return s.ssrc
}

// PayloadType returns the RTP payload type.
func (s *Sink) PayloadType() uint8 {
	return s.payloadType
}

// Timestamp maps a packet time to the 90 kHz RTP clock, offset by the
// stream's random base.
func (s *Sink) Timestamp(pts int64, tb video.Fraction) uint32 {
	return s.baseTime + uint32(video.Rescale(pts, tb, clockTimeBase))
}

// WritePacket packetizes one compressed frame. Header packets carry no
// picture and are skipped.
func (s *Sink) WritePacket(pkt video.CompressedPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if pkt.IsHeader() {
		s.stats.HeadersSkipped++
		return nil
	}
	if len(pkt.Data) == 0 {
		return ErrEmptyPayload
	}

	ts := s.Timestamp(pkt.PTS, pkt.TimeBase)
	packets := s.packetizer.Packetize(pkt.Data, 0)
	if len(packets) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Sink.WritePacket",
			"size":     len(pkt.Data),
			"mtu":      s.mtu,
		}).Error("Payloader produced no packets")
		return fmt.Errorf("%w: payloader produced no packets", ErrInvalidMTU)
	}

	for _, p := range packets {
		p.Timestamp = ts
		raw, err := p.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal RTP packet: %w", err)
		}
		if _, err := s.w.Write(raw); err != nil {
			s.stats.WriteErrors++
			logrus.WithFields(logrus.Fields{
				"function": "Sink.WritePacket",
				"sequence": p.SequenceNumber,
				"error":    err.Error(),
			}).Warn("Failed to write RTP packet")
			return fmt.Errorf("failed to write RTP packet: %w", err)
		}
		s.stats.PacketsSent++
		s.stats.BytesSent += uint64(len(raw))
	}
	s.stats.FramesSent++
	s.stats.LastTime = ts

	logrus.WithFields(logrus.Fields{
		"function":  "Sink.WritePacket",
		"pts":       pkt.PTS,
		"timestamp": ts,
		"packets":   len(packets),
		"keyframe":  pkt.IsKeyFrame(),
	}).Debug("Frame sent")

	return nil
}

// Statistics returns a snapshot of the send counters.
func (s *Sink) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops the sink. It closes the writer when it is an io.Closer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	logrus.WithFields(logrus.Fields{
		"function": "Sink.Close",
		"ssrc":     s.ssrc,
		"frames":   s.stats.FramesSent,
		"packets":  s.stats.PacketsSent,
	}).Info("Closing RTP sink")

	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
