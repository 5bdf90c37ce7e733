package vpx

import "github.com/opd-ai/vpxenc/av/video"

// Stats counts frames and packets through an encoder.
type Stats struct {
	FramesIn        uint64
	FramesDiscarded uint64
	FramesDropped   uint64
	FramesEncoded   uint64
	EncodeErrors    uint64
	PacketsOut      uint64
	KeyFrames       uint64
	BytesOut        uint64
	SinkErrors      uint64
}

func (s *Stats) record(pkt *video.CompressedPacket) {
	s.PacketsOut++
	s.BytesOut += uint64(len(pkt.Data))
	if pkt.IsKeyFrame() {
		s.KeyFrames++
	}
}

// Stats returns a snapshot of the encoder counters.
func (e *Encoder) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
