package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/vpxenc/av/ivf"
	"github.com/opd-ai/vpxenc/av/rtp"
	"github.com/opd-ai/vpxenc/av/video"
	"github.com/opd-ai/vpxenc/av/vpx"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
	"github.com/opd-ai/vpxenc/config"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "encode a Y4M or raw stream to IVF or RTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "codec", Usage: "vp8 or vp9"},
			&cli.IntFlag{Name: "bitrate", Aliases: []string{"b"}, Usage: "target bitrate in bit/s"},
			&cli.IntFlag{Name: "gop", Usage: "maximum key frame interval in ms"},
			&cli.IntFlag{Name: "speed", Usage: "speed 0 (best) to 16 (fastest)"},
			&cli.StringFlag{Name: "deadline", Usage: "realtime, good, best or microseconds"},
			&cli.BoolFlag{Name: "lossless", Usage: "lossless mode (vp9)"},
			&cli.StringFlag{Name: "tune", Usage: "content tuning: default, screen or film"},
			&cli.StringFlag{Name: "error-resilient", Usage: "none, default, partitions"},
			&cli.BoolFlag{Name: "fill-gaps", Usage: "repeat frames to keep a constant rate"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input file, - for stdin"},
			&cli.StringFlag{Name: "input-kind", Usage: "y4m or raw"},
			&cli.StringFlag{Name: "pixel-format", Usage: "raw input pixel format"},
			&cli.IntFlag{Name: "width", Usage: "raw input width"},
			&cli.IntFlag{Name: "height", Usage: "raw input height"},
			&cli.StringFlag{Name: "fps", Usage: "input frame rate, e.g. 30 or 30000/1001"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "IVF output file"},
			&cli.StringFlag{Name: "rtp", Usage: "send RTP to host:port instead of writing IVF"},
			&cli.IntFlag{Name: "mtu", Usage: "RTP packet size limit"},
			&cli.IntFlag{Name: "payload-type", Usage: "RTP payload type"},
			&cli.UintFlag{Name: "ssrc", Usage: "RTP SSRC, random when unset"},
			&cli.IntFlag{Name: "frames", Usage: "stop after this many input frames"},
			&cli.BoolFlag{Name: "realtime", Usage: "read input at its frame rate"},
			&cli.BoolFlag{Name: "require-libvpx", Usage: "fail instead of using the passthrough backend"},
		},
		Action: runEncode,
	}
}

// loadConfig merges the config file with the flags that were given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("codec") {
		cfg.Encoder.Codec = c.String("codec")
	}
	if c.IsSet("bitrate") {
		cfg.Encoder.Bitrate = c.Int("bitrate")
	}
	if c.IsSet("gop") {
		cfg.Encoder.GOPMillis = c.Int("gop")
	}
	if c.IsSet("speed") {
		speed := c.Int("speed")
		cfg.Encoder.Speed = &speed
	}
	if c.IsSet("deadline") {
		cfg.Encoder.Deadline = c.String("deadline")
	}
	if c.IsSet("lossless") {
		cfg.Encoder.Lossless = c.Bool("lossless")
	}
	if c.IsSet("tune") {
		cfg.Encoder.TuneContent = c.String("tune")
	}
	if c.IsSet("error-resilient") {
		cfg.Encoder.ErrorResilient = c.String("error-resilient")
	}
	if c.IsSet("fill-gaps") {
		cfg.Encoder.FillGaps = c.Bool("fill-gaps")
	}

	if c.IsSet("input") {
		cfg.Input.Path = c.String("input")
	}
	if c.IsSet("input-kind") {
		cfg.Input.Kind = c.String("input-kind")
	}
	if c.IsSet("pixel-format") {
		cfg.Input.PixelFormat = c.String("pixel-format")
	}
	if c.IsSet("width") {
		cfg.Input.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Input.Height = c.Int("height")
	}
	if c.IsSet("fps") {
		cfg.Input.FPS = c.String("fps")
	}

	if c.IsSet("output") {
		cfg.Output.Kind = config.OutputIVF
		cfg.Output.Path = c.String("output")
	}
	if c.IsSet("rtp") {
		cfg.Output.Kind = config.OutputRTP
		cfg.Output.Address = c.String("rtp")
	}
	if c.IsSet("mtu") {
		cfg.Output.MTU = c.Int("mtu")
	}
	if c.IsSet("payload-type") {
		cfg.Output.PayloadType = c.Int("payload-type")
	}
	if c.IsSet("ssrc") {
		cfg.Output.SSRC = uint32(c.Uint("ssrc"))
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openInput(cfg *config.Config, stdin io.Reader) (video.FrameReader, io.Closer, error) {
	var r io.Reader = stdin
	var closer io.Closer = io.NopCloser(stdin)
	if cfg.Input.Path != "-" {
		f, err := os.Open(cfg.Input.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open input: %w", err)
		}
		r, closer = f, f
	}

	caps, err := cfg.InputCaps()
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	var reader video.FrameReader
	switch cfg.Input.Kind {
	case config.InputRaw:
		if !caps.FPS.IsValid() {
			caps.FPS = vpx.DefaultFPS
		}
		reader, err = video.NewRawReader(r, caps)
	default:
		reader, err = video.NewY4MReader(r)
	}
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return reader, closer, nil
}

// sink is what the encoder writes to; both outputs also need closing.
type sink interface {
	vpx.PacketSink
	io.Closer
}

func openOutput(cfg *config.Config, codecID video.CodecID) (sink, error) {
	switch cfg.Output.Kind {
	case config.OutputRTP:
		conn, err := net.Dial("udp", cfg.Output.Address)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Output.Address, err)
		}
		s, err := rtp.NewSink(conn, codecID, rtp.SinkConfig{
			MTU:         uint16(cfg.Output.MTU),
			PayloadType: uint8(cfg.Output.PayloadType),
			SSRC:        cfg.Output.SSRC,
		})
		if err != nil {
			conn.Close()
			return nil, err
		}
		return s, nil
	default:
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		return ivf.NewWriter(f), nil
	}
}

func selectBackend(variant vpx.Variant, requireLibvpx bool) (codec.Interface, error) {
	if backend := variant.Backend(); backend != nil {
		return backend, nil
	}
	if requireLibvpx {
		return nil, fmt.Errorf("%w: built without libvpx", vpx.ErrNoInterface)
	}
	logrus.WithFields(logrus.Fields{
		"function": "selectBackend",
		"variant":  variant.Name(),
	}).Warn("libvpx not available, using passthrough backend")
	return codec.NewPassthrough(variant.Name(), codec.PassthroughOptions{}), nil
}

func runEncode(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return err
	}

	variant, err := cfg.Variant()
	if err != nil {
		return err
	}
	backend, err := selectBackend(variant, c.Bool("require-libvpx"))
	if err != nil {
		return err
	}

	reader, inputCloser, err := openInput(cfg, os.Stdin)
	if err != nil {
		return err
	}
	defer inputCloser.Close()

	caps := reader.Caps()
	override, err := cfg.InputCaps()
	if err != nil {
		return err
	}
	if override.FPS.IsValid() {
		caps.FPS = override.FPS
	}

	out, err := openOutput(cfg, variant.Codec())
	if err != nil {
		return err
	}

	enc := vpx.NewEncoder(variant, backend)
	if err := cfg.ApplyTo(enc); err != nil {
		out.Close()
		return err
	}
	enc.SetSink(out)
	enc.SetInputCaps(caps)
	if err := enc.SetStateErr(vpx.StateActive); err != nil {
		out.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	readErr := pump(ctx, reader, enc, caps.FPS, c.Int("frames"), c.Bool("realtime"))

	// Dropping to idle drains the codec into the sink before it closes.
	if err := enc.SetStateErr(vpx.StateIdle); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "runEncode",
			"error":    err.Error(),
		}).Warn("Failed to stop encoder")
	}
	closeErr := out.Close()

	stats := enc.Stats()
	logrus.WithFields(logrus.Fields{
		"function":   "runEncode",
		"frames_in":  stats.FramesIn,
		"encoded":    stats.FramesEncoded,
		"dropped":    stats.FramesDropped + stats.FramesDiscarded,
		"packets":    stats.PacketsOut,
		"key_frames": stats.KeyFrames,
		"bytes":      stats.BytesOut,
	}).Info("Encoding finished")
	fmt.Fprintf(c.App.Writer, "%s: %d frames in, %d packets, %d bytes\n",
		variant.Name(), stats.FramesIn, stats.PacketsOut, stats.BytesOut)

	if readErr != nil {
		return readErr
	}
	return closeErr
}

// pump feeds frames until EOF, the frame limit or cancellation.
func pump(ctx context.Context, reader video.FrameReader, enc *vpx.Encoder, fps video.Fraction, limit int, realtime bool) error {
	var tick <-chan time.Time
	if realtime && fps.IsValid() {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps.Value()))
		defer ticker.Stop()
		tick = ticker.C
	}

	for n := 0; limit <= 0 || n < limit; n++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", n, err)
		}
		if fps.IsValid() && frame.Caps.FPS != fps {
			frame.Caps.FPS = fps
			frame.TimeBase = fps.Invert()
			frame.Duration = 1
		}
		enc.Push(frame)

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
	return nil
}
