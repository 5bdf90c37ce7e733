package video

import (
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"
)

// maxGapFill bounds how many repeated frames one gap may produce.
const maxGapFill = 300

// FpsControl paces a frame stream to a constant frame rate.
//
// Every frame is mapped to an output slot (its presentation time multiplied
// by the target rate). A frame whose slot was already used is discarded;
// with fill-gaps enabled, skipped slots are filled by repeating the last
// forwarded frame. Output frames carry the slot number as PTS, a duration of
// one and a time base of 1/fps.
type FpsControl struct {
	mu       sync.Mutex
	fps      Fraction
	fillGaps bool
	output   func(*Frame)
	started  bool
	lastSlot int64
	last     *Frame
}

// NewFpsControl creates a pacer for 30 fps without gap filling.
func NewFpsControl() *FpsControl {
	return &FpsControl{fps: Fraction{Num: 30, Den: 1}}
}

// SetOutput sets the function that receives paced frames.
func (c *FpsControl) SetOutput(fn func(*Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = fn
}

// Reconfigure changes the target rate and gap policy. Invalid rates are
// ignored.
func (c *FpsControl) Reconfigure(fps Fraction, fillGaps bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fps.IsValid() {
		c.fps = fps
	}
	c.fillGaps = fillGaps

	logrus.WithFields(logrus.Fields{
		"function":  "FpsControl.Reconfigure",
		"fps":       c.fps.String(),
		"fill_gaps": fillGaps,
	}).Debug("Pacer reconfigured")
}

// FPS returns the target frame rate.
func (c *FpsControl) FPS() Fraction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// FillGaps reports whether skipped slots are filled.
func (c *FpsControl) FillGaps() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fillGaps
}

// Restart forgets the stream position so the next frame starts a new
// sequence.
func (c *FpsControl) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	c.lastSlot = 0
	c.last = nil
}

// Discard reports whether frame falls into an already used slot.
func (c *FpsControl) Discard(frame *Frame) bool {
	if frame == nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return false
	}
	return c.slot(frame) <= c.lastSlot
}

// Forward paces frame and passes the result, plus any gap fillers, to the
// output function. The output function runs on the caller's goroutine
// after the pacer's own lock is released.
func (c *FpsControl) Forward(frame *Frame) {
	if frame == nil {
		return
	}

	c.mu.Lock()
	slot := c.slot(frame)
	if c.started && slot <= c.lastSlot {
		c.mu.Unlock()
		return
	}

	var frames []*Frame
	if c.started && c.fillGaps && c.last != nil {
		from := c.lastSlot + 1
		if slot-from > maxGapFill {
			from = slot - maxGapFill
		}
		for s := from; s < slot; s++ {
			frames = append(frames, c.stamp(c.last, s))
		}
	}
	frames = append(frames, c.stamp(frame, slot))

	c.started = true
	c.lastSlot = slot
	c.last = frame
	output := c.output
	c.mu.Unlock()

	if output == nil {
		return
	}
	for _, f := range frames {
		output(f)
	}
}

// slot computes floor(pts * timeBase * fps). Frames without a time base are
// assumed to count frames at their own caps rate, or at the target rate.
func (c *FpsControl) slot(frame *Frame) int64 {
	tb := frame.TimeBase
	if !tb.IsValid() {
		tb = frame.Caps.FPS.Invert()
	}
	if !tb.IsValid() {
		tb = c.fps.Invert()
	}

	num := new(big.Int).Mul(big.NewInt(frame.PTS), big.NewInt(tb.Num))
	num.Mul(num, big.NewInt(c.fps.Num))
	den := new(big.Int).Mul(big.NewInt(tb.Den), big.NewInt(c.fps.Den))

	// Euclidean division floors for a positive divisor.
	return new(big.Int).Div(num, den).Int64()
}

func (c *FpsControl) stamp(frame *Frame, slot int64) *Frame {
	out := frame.WithMetadata()
	out.PTS = slot
	out.Duration = 1
	out.TimeBase = c.fps.Invert()
	out.Caps.FPS = c.fps
	return out
}
