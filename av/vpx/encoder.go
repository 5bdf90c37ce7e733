package vpx

import (
	"bytes"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

// flushLimit bounds the number of flush calls made while draining the
// backend on teardown.
const flushLimit = 64

// State is the encoder lifecycle state.
type State int

const (
	// StateIdle holds no codec resources.
	StateIdle State = iota
	// StateReady is paused; pushed frames are dropped.
	StateReady
	// StateActive accepts frames.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pacer decides which frames reach the encoder and retimes them.
//
// The encoder calls Discard and Forward with its lock held. Forward must
// deliver frames to the output function synchronously, before returning.
type Pacer interface {
	Discard(frame *video.Frame) bool
	Forward(frame *video.Frame)
	Reconfigure(fps video.Fraction, fillGaps bool)
	Restart()
	SetOutput(fn func(*video.Frame))
}

// PacketSink receives compressed packets. It is called with the encoder
// lock held and must not call back into the encoder.
type PacketSink interface {
	WritePacket(pkt video.CompressedPacket) error
}

// PacketSinkFunc adapts a function to PacketSink.
type PacketSinkFunc func(pkt video.CompressedPacket) error

// WritePacket calls f(pkt).
func (f PacketSinkFunc) WritePacket(pkt video.CompressedPacket) error {
	return f(pkt)
}

// Encoder drives a VP8/VP9 backend from a raw frame stream.
type Encoder struct {
	mu sync.Mutex

	variant   Variant
	backend   codec.Interface
	pacer     Pacer
	sink      PacketSink
	converter *video.Converter

	state         State
	opts          Options
	inputCaps     video.Caps
	convertedCaps video.Caps
	outputCaps    video.CompressedCaps
	headers       []video.CompressedPacket
	stats         Stats

	// Session state, fixed from init to teardown. sessionCaps labels the
	// packets of the running codec even if new caps were negotiated since.
	ctx         codec.Context
	img         *codec.Image
	sessionCaps video.CompressedCaps
	initialized bool
	id          int64
	index       int

	onOutputCapsChanged func(video.CompressedCaps)
	onHeadersChanged    func([]video.CompressedPacket)
	onOptionChanged     func(name string, value any)
	onStateChanged      func(State)
}

// NewEncoder creates an idle encoder for variant. backend may be nil, in
// which case activation fails with ErrNoInterface. The encoder starts with
// an FpsControl pacer and no sink.
func NewEncoder(variant Variant, backend codec.Interface) *Encoder {
	backendName := "none"
	if backend != nil {
		backendName = backend.Name()
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewEncoder",
		"variant":  variant.Name(),
		"backend":  backendName,
	}).Info("Creating encoder")

	converter := video.NewConverter()
	converter.SetAspectRatioMode(video.AspectRatioFit)

	e := &Encoder{
		variant:   variant,
		backend:   backend,
		converter: converter,
		opts:      DefaultOptions(),
	}
	e.SetPacer(video.NewFpsControl())
	return e
}

// SetPacer replaces the pacing collaborator. A nil pacer makes Push encode
// every converted frame directly.
func (e *Encoder) SetPacer(p Pacer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pacer != nil {
		e.pacer.SetOutput(nil)
	}
	e.pacer = p
	if p != nil {
		p.SetOutput(e.onPacedFrame)
	}
}

// SetSink sets the packet consumer.
func (e *Encoder) SetSink(sink PacketSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// OnOutputCapsChanged registers a callback for output caps changes.
func (e *Encoder) OnOutputCapsChanged(fn func(video.CompressedCaps)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOutputCapsChanged = fn
}

// OnHeadersChanged registers a callback for header packet changes.
func (e *Encoder) OnHeadersChanged(fn func([]video.CompressedPacket)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onHeadersChanged = fn
}

// OnOptionChanged registers a callback invoked with the option name and its
// new value whenever an option changes.
func (e *Encoder) OnOptionChanged(fn func(name string, value any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOptionChanged = fn
}

// OnStateChanged registers a callback for successful state transitions.
func (e *Encoder) OnStateChanged(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStateChanged = fn
}

// Variant returns the codec variant.
func (e *Encoder) Variant() Variant {
	return e.variant
}

// Codec returns the id of the codec being produced.
func (e *Encoder) Codec() video.CodecID {
	return e.variant.Codec()
}

// State returns the current lifecycle state.
func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Headers returns the out-of-band header packets of the last session.
func (e *Encoder) Headers() []video.CompressedPacket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]video.CompressedPacket(nil), e.headers...)
}

// SetState requests a lifecycle transition and reports whether it
// happened. Use SetStateErr to learn why a transition failed.
func (e *Encoder) SetState(state State) bool {
	return e.SetStateErr(state) == nil
}

// SetStateErr performs a lifecycle transition.
//
// Idle to Active initializes the codec; any transition to Idle tears it
// down. Ready and Active switch between each other without touching codec
// resources. Self-transitions and unknown states are rejected with
// ErrInvalidTransition and leave the state unchanged.
func (e *Encoder) SetStateErr(state State) error {
	var notify []func()

	e.mu.Lock()
	from := e.state
	var err error

	switch {
	case from == StateIdle && state == StateReady:
	case from == StateIdle && state == StateActive:
		notify, err = e.initLocked()
	case (from == StateReady || from == StateActive) && state == StateIdle:
		e.uninitLocked()
	case from == StateReady && state == StateActive, from == StateActive && state == StateReady:
	default:
		err = fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, state)
	}

	if err == nil {
		e.state = state
		if cb := e.onStateChanged; cb != nil {
			notify = append(notify, func() { cb(state) })
		}
	}
	e.mu.Unlock()

	for _, fn := range notify {
		fn()
	}

	fields := logrus.Fields{
		"function": "Encoder.SetState",
		"from":     from.String(),
		"to":       state.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error("State transition failed")
		return err
	}
	logrus.WithFields(fields).Debug("State changed")
	return nil
}

// initLocked acquires the codec context and frame buffer. On failure every
// partially acquired resource is released.
func (e *Encoder) initLocked() ([]func(), error) {
	e.uninitLocked()

	if e.backend == nil {
		return nil, ErrNoInterface
	}
	if !accepts(e.variant, e.backend) {
		return nil, fmt.Errorf("%w: %s backend for %s", ErrBackendMismatch, e.backend.Bitstream(), e.variant.Name())
	}
	if !e.inputCaps.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInputCaps, e.inputCaps)
	}

	caps := e.convertedCaps
	desc := resolveWithFallback(e.variant, caps.Format)

	cfg, err := e.backend.DefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodecInit, err)
	}

	cfg.Profile = desc.Profile
	cfg.Width = uint(caps.Width)
	cfg.Height = uint(caps.Height)
	cfg.TimeBase = codec.Rational{Num: int(caps.FPS.Den), Den: int(caps.FPS.Num)}
	cfg.Threads = uint(runtime.NumCPU())
	cfg.EndUsage = codec.RateControlCBR
	cfg.TargetBitrate = uint(max(e.opts.Bitrate, 0) / 1000)
	cfg.BitDepth = codec.BitDepth(desc.Depth)
	cfg.InputBitDepth = uint(desc.Depth)
	cfg.ErrorResilient = e.opts.ErrorResilient
	cfg.Pass = codec.PassOne
	cfg.KFMaxDist = KeyFrameDistance(e.opts.GOP, caps.FPS)

	ctx, err := e.backend.Init(cfg, desc.Flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodecInit, err)
	}

	tuning := Tuning{
		Speed:       e.opts.Speed,
		TuneContent: e.opts.TuneContent,
		Lossless:    e.opts.Lossless,
		Caps:        e.outputCaps,
		Bitrate:     e.opts.Bitrate,
	}
	for _, c := range e.variant.Controls(tuning) {
		if err := ctx.Control(c.ID, c.Value); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Encoder.init",
				"control":  c.ID.String(),
				"value":    c.Value,
				"error":    err.Error(),
			}).Warn("Codec control rejected")
		}
	}

	img, err := e.backend.AllocImage(desc.Native, caps.Width, caps.Height, 1)
	if err != nil {
		if derr := ctx.Destroy(); derr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Encoder.init",
				"error":    derr.Error(),
			}).Warn("Failed to destroy codec context")
		}
		return nil, fmt.Errorf("%w: %w", ErrImageAlloc, err)
	}

	e.ctx = ctx
	e.img = img
	e.converter.SetOutputCaps(caps)
	e.sessionCaps = e.outputCaps

	var notify []func()
	if fn := e.updateHeadersLocked(); fn != nil {
		notify = append(notify, fn)
	}

	if e.pacer != nil {
		e.pacer.Reconfigure(caps.FPS, e.opts.FillGaps)
		e.pacer.Restart()
	}

	e.initialized = true

	logrus.WithFields(logrus.Fields{
		"function":    "Encoder.init",
		"backend":     e.backend.Name(),
		"format":      desc.Format.String(),
		"profile":     desc.Profile,
		"width":       caps.Width,
		"height":      caps.Height,
		"fps":         caps.FPS.String(),
		"bitrate":     e.opts.Bitrate,
		"kf_max_dist": cfg.KFMaxDist,
	}).Info("Encoder initialized")

	return notify, nil
}

// uninitLocked drains the backend and releases the codec resources. It is
// a no-op when nothing is initialized.
func (e *Encoder) uninitLocked() {
	if !e.initialized {
		return
	}
	e.initialized = false

	for i := 0; i < flushLimit; i++ {
		if err := e.ctx.Encode(nil, -1, 0, 0, e.opts.Deadline); err != nil {
			logEncodeError("Encoder.uninit", err)
			break
		}
		if e.drainLocked() == 0 {
			break
		}
	}

	e.img.Free()
	e.img = nil

	if err := e.ctx.Destroy(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Encoder.uninit",
			"error":    err.Error(),
		}).Warn("Failed to destroy codec context")
	}
	e.ctx = nil
	e.sessionCaps = video.CompressedCaps{}

	if e.pacer != nil {
		e.pacer.Restart()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Encoder.uninit",
		"packets":  e.stats.PacketsOut,
	}).Info("Encoder released")
}

// updateHeadersLocked stores the backend's global headers as header packets
// and returns the change notification, if any.
func (e *Encoder) updateHeadersLocked() func() {
	var headers []video.CompressedPacket
	if data := e.ctx.GlobalHeaders(); len(data) > 0 {
		headers = append(headers, video.CompressedPacket{
			Caps:     e.sessionCaps,
			Data:     data,
			TimeBase: e.sessionCaps.FPS.Invert(),
			Flags:    video.PacketFlagHeader,
		})
	}

	if headersEqual(e.headers, headers) {
		return nil
	}
	e.headers = headers

	callback := e.onHeadersChanged
	if callback == nil {
		return nil
	}
	snapshot := append([]video.CompressedPacket(nil), headers...)
	return func() { callback(snapshot) }
}

func headersEqual(a, b []video.CompressedPacket) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i].Data, b[i].Data) || a[i].Caps != b[i].Caps {
			return false
		}
	}
	return true
}

// KeyFrameDistance converts a keyframe interval in milliseconds to a frame
// count at fps, never less than one.
func KeyFrameDistance(gopMillis int, fps video.Fraction) uint {
	frames := math.Round(float64(gopMillis) * fps.Value() / 1000)
	if frames < 1 {
		return 1
	}
	return uint(frames)
}
