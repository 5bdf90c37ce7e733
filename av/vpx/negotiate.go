package vpx

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vpxenc/av/video"
)

// DefaultFPS is assumed when the input caps carry no frame rate.
var DefaultFPS = video.Fraction{Num: 30, Den: 1}

// SetInputCaps records the caps of the incoming stream and renegotiates the
// output caps. The output-caps callback fires only when they change.
//
// A running codec context is not reconfigured: frames keep being converted
// to the caps of the current session, and the new caps apply from the next
// Idle to Active transition.
func (e *Encoder) SetInputCaps(caps video.Caps) {
	e.mu.Lock()
	e.inputCaps = caps
	changed := e.updateOutputCapsLocked(caps)
	out := e.outputCaps
	callback := e.onOutputCapsChanged
	e.mu.Unlock()

	if !changed {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Encoder.SetInputCaps",
		"input":    caps.String(),
		"output":   out.String(),
	}).Debug("Output caps changed")

	if callback != nil {
		callback(out)
	}
}

// InputCaps returns the caps last passed to SetInputCaps.
func (e *Encoder) InputCaps() video.Caps {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputCaps
}

// OutputCaps returns the negotiated compressed caps, empty when the input
// caps are invalid.
func (e *Encoder) OutputCaps() video.CompressedCaps {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputCaps
}

// ConvertedCaps returns the negotiated raw caps frames are converted to
// before encoding.
func (e *Encoder) ConvertedCaps() video.Caps {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.convertedCaps
}

func (e *Encoder) updateOutputCapsLocked(caps video.Caps) bool {
	if !caps.IsValid() {
		e.convertedCaps = video.Caps{}
		if e.outputCaps.IsEmpty() {
			return false
		}
		e.outputCaps = video.CompressedCaps{}
		return true
	}

	desc := resolveWithFallback(e.variant, caps.Format)

	fps := caps.FPS
	if !fps.IsValid() {
		fps = DefaultFPS
	}

	e.convertedCaps = video.Caps{
		Format: desc.Format,
		Width:  caps.Width,
		Height: caps.Height,
		FPS:    fps,
	}
	out := video.CompressedCaps{
		Codec:  e.variant.Codec(),
		Width:  e.convertedCaps.Width,
		Height: e.convertedCaps.Height,
		FPS:    e.convertedCaps.FPS,
	}

	if out == e.outputCaps {
		return false
	}
	e.outputCaps = out
	return true
}
