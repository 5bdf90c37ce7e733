package config

import (
	"fmt"
	"net"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/opd-ai/vpxenc/av/vpx"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
	"github.com/sirupsen/logrus"
)

// Validate checks that all configuration values are within acceptable ranges.
// Returns an error describing the first validation failure found.
func (c *Config) Validate() error {
	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks encoder settings.
func (e *EncoderConfig) Validate() error {
	if _, err := vpx.ParseVariant(e.Codec); err != nil {
		return err
	}
	if e.Bitrate <= 0 {
		return fmt.Errorf("bitrate must be positive, got %d", e.Bitrate)
	}
	if e.GOPMillis <= 0 {
		return fmt.Errorf("gop_ms must be positive, got %d", e.GOPMillis)
	}
	if e.Speed != nil && (*e.Speed < 0 || *e.Speed > vpx.MaxSpeed) {
		return fmt.Errorf("speed must be between 0 and %d, got %d", vpx.MaxSpeed, *e.Speed)
	}
	if _, err := codec.ParseDeadline(e.Deadline); err != nil {
		return err
	}
	if _, err := vpx.ParseTuneContent(e.TuneContent); err != nil {
		return err
	}
	if _, err := codec.ParseErrorResilient(e.ErrorResilient); err != nil {
		return err
	}
	if e.Lossless && e.Codec == "vp8" {
		return fmt.Errorf("lossless is only supported by vp9")
	}
	return nil
}

// Validate checks input settings.
func (i *InputConfig) Validate() error {
	switch i.Kind {
	case InputY4M:
	case InputRaw:
		if i.PixelFormat == "" {
			return fmt.Errorf("pixel_format is required for raw input")
		}
		if i.Width <= 0 || i.Height <= 0 {
			return fmt.Errorf("width and height are required for raw input, got %dx%d", i.Width, i.Height)
		}
	default:
		return fmt.Errorf("kind must be %q or %q, got %q", InputY4M, InputRaw, i.Kind)
	}
	if i.PixelFormat != "" {
		if _, err := video.ParsePixelFormat(i.PixelFormat); err != nil {
			return err
		}
	}
	if i.Width < 0 || i.Height < 0 || i.Width > 65535 || i.Height > 65535 {
		return fmt.Errorf("dimensions out of range: %dx%d", i.Width, i.Height)
	}
	if i.FPS != "" {
		if _, err := video.ParseFraction(i.FPS); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks output settings.
func (o *OutputConfig) Validate() error {
	switch o.Kind {
	case OutputIVF:
		if o.Path == "" {
			return fmt.Errorf("path is required for ivf output")
		}
	case OutputRTP:
		if _, _, err := net.SplitHostPort(o.Address); err != nil {
			return fmt.Errorf("address must be host:port: %w", err)
		}
	default:
		return fmt.Errorf("kind must be %q or %q, got %q", OutputIVF, OutputRTP, o.Kind)
	}
	if o.MTU < 20 || o.MTU > 65535 {
		return fmt.Errorf("mtu must be between 20 and 65535, got %d", o.MTU)
	}
	if o.PayloadType < 96 || o.PayloadType > 127 {
		return fmt.Errorf("payload_type must be between 96 and 127, got %d", o.PayloadType)
	}
	return nil
}

// Validate checks logging settings.
func (l *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return err
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	return nil
}
