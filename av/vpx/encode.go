package vpx

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

// Push hands a raw frame to the encoder and reports whether it was
// accepted. Frames are dropped while the encoder is not active, when the
// pacer discards them, or when they cannot be converted to the negotiated
// caps. Encoding errors are logged and do not stop the encoder.
func (e *Encoder) Push(frame *video.Frame) bool {
	if frame == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.FramesIn++

	if e.state != StateActive || !e.initialized {
		e.stats.FramesDropped++
		return false
	}

	if e.pacer != nil && e.pacer.Discard(frame) {
		e.stats.FramesDiscarded++
		return false
	}

	src := e.converter.Convert(frame)
	if src == nil {
		e.stats.FramesDropped++
		return false
	}

	e.id = src.ID
	e.index = src.Index

	if e.pacer == nil {
		e.encodeFrameLocked(src)
		return true
	}
	e.pacer.Forward(src)
	return true
}

// onPacedFrame is the pacer output. It runs inside Push, with the lock held.
func (e *Encoder) onPacedFrame(frame *video.Frame) {
	if !e.initialized {
		return
	}
	e.encodeFrameLocked(frame)
}

// encodeFrameLocked copies src into the native image, submits it and
// publishes whatever the backend produced.
func (e *Encoder) encodeFrameLocked(src *video.Frame) {
	copyFrame(e.img, src)

	err := e.ctx.Encode(e.img, src.PTS, uint64(max(src.Duration, 0)), 0, e.opts.Deadline)
	if err != nil {
		e.stats.EncodeErrors++
		logEncodeError("Encoder.encodeFrame", err)
	} else {
		e.stats.FramesEncoded++
	}

	e.drainLocked()
}

// copyFrame writes each plane of src into img row by row. Row y of a
// subsampled plane lands on destination row y >> heightDiv, and at most
// min(source line size, destination stride) bytes are copied per row.
func copyFrame(img *codec.Image, src *video.Frame) {
	planes := min(src.PlaneCount(), len(img.Planes))
	for plane := 0; plane < planes; plane++ {
		dst := img.Planes[plane]
		oLineSize := img.Stride[plane]
		lineSize := min(src.LineSize(plane), oLineSize)
		heightDiv := src.HeightDiv(plane)

		for y := 0; y < src.Caps.Height; y++ {
			ys := y >> heightDiv
			offset := ys * oLineSize
			if offset >= len(dst) {
				break
			}
			end := min(offset+lineSize, len(dst))
			copy(dst[offset:end], src.Line(plane, y))
		}
	}
}

// drainLocked publishes the frame packets produced by the last Encode call
// and returns how many packets of any kind there were.
func (e *Encoder) drainLocked() int {
	var iter codec.Iterator
	n := 0
	for pkt := e.ctx.NextPacket(&iter); pkt != nil; pkt = e.ctx.NextPacket(&iter) {
		n++
		if pkt.Kind != codec.PacketKindFrame {
			continue
		}
		e.sendFrameLocked(pkt)
	}
	return n
}

func (e *Encoder) sendFrameLocked(pkt *codec.CxPacket) {
	tb := e.ctx.Config().TimeBase

	packet := video.CompressedPacket{
		Caps:     e.sessionCaps,
		Data:     append([]byte(nil), pkt.Data...),
		PTS:      pkt.PTS,
		DTS:      pkt.PTS,
		Duration: int64(pkt.Duration),
		TimeBase: video.Fraction{Num: int64(tb.Num), Den: int64(tb.Den)},
		ID:       e.id,
		Index:    e.index,
	}
	if pkt.Flags&codec.FrameIsKey != 0 {
		packet.Flags = video.PacketFlagKeyFrame
	}

	e.stats.record(&packet)

	if e.sink == nil {
		return
	}
	if err := e.sink.WritePacket(packet); err != nil {
		e.stats.SinkErrors++
		logrus.WithFields(logrus.Fields{
			"function": "Encoder.sendFrame",
			"pts":      packet.PTS,
			"size":     len(packet.Data),
			"error":    err.Error(),
		}).Warn("Packet sink rejected packet")
	}
}

// logEncodeError logs the backend's detail string when it has one, the
// generic status text otherwise; codec.Error already prefers the detail.
func logEncodeError(function string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"error":    err.Error(),
	}).Error("Encoding failed")
}
