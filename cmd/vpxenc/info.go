package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/opd-ai/vpxenc/av/ivf"
	"github.com/opd-ai/vpxenc/av/video"
	"github.com/opd-ai/vpxenc/av/vpx"
	"github.com/urfave/cli/v2"
)

func formatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "list the raw pixel formats each codec accepts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "codec", Usage: "vp8 or vp9; both when unset"},
		},
		Action: func(c *cli.Context) error {
			variants := []vpx.Variant{vpx.VariantVP8, vpx.VariantVP9}
			if c.IsSet("codec") {
				v, err := vpx.ParseVariant(c.String("codec"))
				if err != nil {
					return err
				}
				variants = []vpx.Variant{v}
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODEC\tFORMAT\tNATIVE\tDEPTH\tPROFILE")
			for _, v := range variants {
				for _, d := range v.Formats() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", v.Name(), d.Format, d.Native, d.Depth, d.Profile)
				}
			}
			return tw.Flush()
		},
	}
}

func levelCommand() *cli.Command {
	return &cli.Command{
		Name:  "level",
		Usage: "print the lowest VP9 level for a stream",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "width", Required: true},
			&cli.IntFlag{Name: "height", Required: true},
			&cli.StringFlag{Name: "fps", Value: "30"},
			&cli.IntFlag{Name: "bitrate", Value: vpx.DefaultBitrate, Usage: "bit/s"},
		},
		Action: func(c *cli.Context) error {
			fps, err := video.ParseFraction(c.String("fps"))
			if err != nil {
				return err
			}
			level := vpx.SelectLevel(c.Int("width"), c.Int("height"), fps, c.Int("bitrate"))
			if level == vpx.NoLevel {
				fmt.Fprintln(c.App.Writer, "no level fits")
				return nil
			}
			fmt.Fprintf(c.App.Writer, "level %d.%d\n", level/10, level%10)
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "summarize an IVF file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "frames", Usage: "list every frame"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected one IVF file")
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := ivf.NewReader(f)
			if err != nil {
				return err
			}
			h := r.Header()
			fmt.Fprintf(c.App.Writer, "codec %s, %dx%d, time base %s, %d frames in header\n",
				h.Codec, h.Width, h.Height, h.TimeBase, h.FrameCount)

			var frames int
			var total int64
			for {
				pkt, err := r.ReadPacket()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				if c.Bool("frames") {
					fmt.Fprintf(c.App.Writer, "frame %d pts %d size %d\n", pkt.Index, pkt.PTS, len(pkt.Data))
				}
				frames++
				total += int64(len(pkt.Data))
			}
			fmt.Fprintf(c.App.Writer, "%d frames, %d bytes\n", frames, total)
			return nil
		},
	}
}
