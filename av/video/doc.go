// Package video holds the raw and compressed video types shared by the
// encode pipeline.
//
// # Raw Frames
//
// A Frame carries one picture in any of the planar or semi-planar layouts
// listed by PixelFormats, described by its Caps (format, size, frame rate).
// Planes are stored row by row with an explicit stride per plane:
//
//	caps := video.Caps{Format: video.FormatYUV420P, Width: 640, Height: 480,
//	    FPS: video.Fraction{Num: 30, Den: 1}}
//	frame, err := video.NewFrame(caps)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	copy(frame.Planes[0], luma)
//
// Frames can be read from YUV4MPEG2 streams with Y4MReader or from
// headerless files with RawReader.
//
// # Conversion
//
// Converter adapts frames to a negotiated output layout. It scales with
// the bilinear kernel, keeps the aspect ratio in AspectRatioFit mode by
// letterboxing with black, and converts RGB24 to planar YUV (BT.601).
// Frames that already match the output caps are passed through without
// copying the planes.
//
// # Pacing
//
// FpsControl retimes a frame stream onto a constant output rate. Frames
// that land in an already filled slot are discarded; with gap filling the
// previous frame is repeated for skipped slots. Output frames carry a
// 1/fps time base and consecutive slot numbers as PTS.
//
// # Compressed Packets
//
// CompressedPacket is the encoder output: a chunk of bitstream with
// timing, key frame and header flags, and the CompressedCaps of the
// stream it belongs to.
package video
