// Package config loads the vpxenc YAML configuration.
//
// Decoding is strict: unknown keys are rejected. Unset fields receive
// explicit defaults, and Validate reports the first bad value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/vpxenc/av/video"
	"github.com/opd-ai/vpxenc/av/vpx"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Input container kinds.
const (
	InputY4M = "y4m"
	InputRaw = "raw"
)

// Output kinds.
const (
	OutputIVF = "ivf"
	OutputRTP = "rtp"
)

// Config is the complete vpxenc configuration.
type Config struct {
	Encoder EncoderConfig `yaml:"encoder"`
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// EncoderConfig mirrors the encoder options.
type EncoderConfig struct {
	Codec          string `yaml:"codec"`           // vp8 or vp9
	Bitrate        int    `yaml:"bitrate"`         // bit/s
	GOPMillis      int    `yaml:"gop_ms"`          // key frame interval
	Speed          *int   `yaml:"speed"`           // 0..16
	Deadline       string `yaml:"deadline"`        // realtime, good, best or microseconds
	Lossless       bool   `yaml:"lossless"`        // VP9 only
	TuneContent    string `yaml:"tune_content"`    // default, screen or film
	ErrorResilient string `yaml:"error_resilient"` // none, default, partitions
	FillGaps       bool   `yaml:"fill_gaps"`
}

// InputConfig describes the raw video source. Width, height and pixel
// format are read from the stream header for y4m input and required for
// raw input.
type InputConfig struct {
	Path        string `yaml:"path"` // "-" is stdin
	Kind        string `yaml:"kind"`
	PixelFormat string `yaml:"pixel_format"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         string `yaml:"fps"` // "30", "30000/1001"
}

// OutputConfig selects where compressed packets go.
type OutputConfig struct {
	Kind        string `yaml:"kind"`
	Path        string `yaml:"path"`    // ivf
	Address     string `yaml:"address"` // rtp, host:port
	MTU         int    `yaml:"mtu"`
	PayloadType int    `yaml:"payload_type"`
	SSRC        uint32 `yaml:"ssrc"` // 0 picks a random one
}

// LoggingConfig controls logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Encoder.Codec == "" {
		c.Encoder.Codec = "vp8"
	}
	if c.Encoder.Bitrate == 0 {
		c.Encoder.Bitrate = vpx.DefaultBitrate
	}
	if c.Encoder.GOPMillis == 0 {
		c.Encoder.GOPMillis = vpx.DefaultGOP
	}
	if c.Encoder.Speed == nil {
		speed := vpx.DefaultSpeed
		c.Encoder.Speed = &speed
	}
	if c.Encoder.Deadline == "" {
		c.Encoder.Deadline = "realtime"
	}
	if c.Encoder.TuneContent == "" {
		c.Encoder.TuneContent = vpx.TuneContentDefault.String()
	}
	if c.Encoder.ErrorResilient == "" {
		c.Encoder.ErrorResilient = "none"
	}

	if c.Input.Path == "" {
		c.Input.Path = "-"
	}
	if c.Input.Kind == "" {
		c.Input.Kind = InputY4M
	}

	if c.Output.Kind == "" {
		c.Output.Kind = OutputIVF
	}
	if c.Output.Kind == OutputIVF && c.Output.Path == "" {
		c.Output.Path = "out.ivf"
	}
	if c.Output.MTU == 0 {
		c.Output.MTU = 1200
	}
	if c.Output.PayloadType == 0 {
		c.Output.PayloadType = 96
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Variant returns the configured codec variant.
func (c *Config) Variant() (vpx.Variant, error) {
	return vpx.ParseVariant(c.Encoder.Codec)
}

// InputCaps returns the caps described by the input section. Fields left
// unset stay zero so the stream header can fill them in.
func (c *Config) InputCaps() (video.Caps, error) {
	var caps video.Caps
	if c.Input.PixelFormat != "" {
		f, err := video.ParsePixelFormat(c.Input.PixelFormat)
		if err != nil {
			return caps, err
		}
		caps.Format = f
	}
	caps.Width = c.Input.Width
	caps.Height = c.Input.Height
	if c.Input.FPS != "" {
		fps, err := video.ParseFraction(c.Input.FPS)
		if err != nil {
			return caps, err
		}
		caps.FPS = fps
	}
	return caps, nil
}

// EncoderOptions converts the encoder section into encoder options.
func (c *Config) EncoderOptions() (vpx.Options, error) {
	opts := vpx.DefaultOptions()
	opts.Bitrate = c.Encoder.Bitrate
	opts.GOP = c.Encoder.GOPMillis
	if c.Encoder.Speed != nil {
		opts.Speed = *c.Encoder.Speed
	}
	opts.Lossless = c.Encoder.Lossless
	opts.FillGaps = c.Encoder.FillGaps

	var err error
	if opts.Deadline, err = codec.ParseDeadline(c.Encoder.Deadline); err != nil {
		return opts, err
	}
	if opts.TuneContent, err = vpx.ParseTuneContent(c.Encoder.TuneContent); err != nil {
		return opts, err
	}
	if opts.ErrorResilient, err = codec.ParseErrorResilient(c.Encoder.ErrorResilient); err != nil {
		return opts, err
	}
	return opts, nil
}

// ApplyTo pushes the encoder options onto enc.
func (c *Config) ApplyTo(enc *vpx.Encoder) error {
	opts, err := c.EncoderOptions()
	if err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}
	enc.SetOptions(opts)

	logrus.WithFields(logrus.Fields{
		"function": "Config.ApplyTo",
		"codec":    c.Encoder.Codec,
		"bitrate":  opts.Bitrate,
		"gop_ms":   opts.GOP,
		"speed":    opts.Speed,
		"deadline": opts.Deadline.String(),
	}).Debug("Applied encoder configuration")
	return nil
}

// ApplyLogging configures the standard logrus logger.
func (c *Config) ApplyLogging() error {
	return c.Logging.Apply(logrus.StandardLogger())
}

// Apply configures logger.
func (l LoggingConfig) Apply(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	logger.SetLevel(level)

	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("logging config: unknown format %q", l.Format)
	}
	return nil
}
