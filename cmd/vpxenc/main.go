// Command vpxenc encodes raw video to VP8 or VP9.
//
// Input is a YUV4MPEG2 stream or headerless raw frames; output is an IVF
// file or an RTP stream over UDP. When the binary is built without the
// libvpx tag a passthrough backend stands in for the codec, which keeps the
// whole pipeline usable for testing.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "vpxenc",
		Usage:   "encode raw video to VP8/VP9",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"VPXENC_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			if !c.IsSet("log-level") {
				return nil
			}
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			encodeCommand(),
			formatsCommand(),
			levelCommand(),
			infoCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vpxenc:", err)
		os.Exit(1)
	}
}
