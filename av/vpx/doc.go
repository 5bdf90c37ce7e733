// Package vpx adapts a raw video stream to a VP8 or VP9 encoder backend.
//
// An Encoder negotiates output caps from the input caps, owns the codec
// context and native frame buffer while it is active, and publishes every
// compressed frame to a PacketSink:
//
//	enc := vpx.NewEncoder(vpx.VariantVP9, codec.VP9())
//	enc.SetSink(sink)
//	enc.SetInputCaps(video.Caps{Format: video.FormatYUV420P, Width: 1280, Height: 720})
//	if !enc.SetState(vpx.StateActive) {
//	    return errors.New("encoder did not start")
//	}
//	defer enc.SetState(vpx.StateIdle)
//
//	for frame := range frames {
//	    enc.Push(frame)
//	}
//
// # Lifecycle
//
// The encoder has three states. Idle holds no codec resources. Moving from
// Idle to Active creates the codec context and frame buffer; moving back to
// Idle drains the packets the backend still holds, then releases both.
// Ready pauses the stream: frames pushed while Ready are dropped, and the
// codec context (if any) stays alive.
//
// # Options
//
// Bitrate, keyframe interval, speed and the other options can be changed at
// any time, but only take effect at the next Idle to Active transition.
//
// # Variants
//
// VariantVP8 and VariantVP9 select the pixel format table and the codec
// tuning controls. The backend (libvpx through cgo, or the pure Go
// passthrough backend) is chosen independently.
package vpx
