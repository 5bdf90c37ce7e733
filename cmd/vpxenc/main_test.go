package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opd-ai/vpxenc/av/ivf"
	"github.com/opd-ai/vpxenc/av/video"
	"github.com/opd-ai/vpxenc/av/vpx"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"vpxenc"}, args...))
	return out.String(), err
}

// writeY4M writes n 16x16 4:2:0 frames at 30 fps.
func writeY4M(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("YUV4MPEG2 W16 H16 F30:1 Ip A1:1 C420jpeg\n")
	for i := 0; i < n; i++ {
		buf.WriteString("FRAME\n")
		buf.Write(bytes.Repeat([]byte{byte(16 + i)}, 16*16))
		buf.Write(bytes.Repeat([]byte{128}, 2*8*8))
	}
	path := filepath.Join(t.TempDir(), "in.y4m")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func skipWithLibvpx(t *testing.T) {
	if codec.VP8() != nil {
		t.Skip("built with libvpx")
	}
}

func readIVF(t *testing.T, path string) (ivf.FileHeader, []video.CompressedPacket) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	r, err := ivf.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	var packets []video.CompressedPacket
	for {
		pkt, err := r.ReadPacket()
		if err != nil {
			break
		}
		packets = append(packets, pkt)
	}
	return r.Header(), packets
}

func TestEncodeY4MToIVF(t *testing.T) {
	skipWithLibvpx(t)

	in := writeY4M(t, 5)
	outPath := filepath.Join(t.TempDir(), "out.ivf")

	out, err := runApp(t, "encode", "--codec", "vp9", "-i", in, "-o", outPath, "--gop", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "vp9: 5 frames in, 5 packets")

	h, packets := readIVF(t, outPath)
	assert.Equal(t, video.CodecVP9, h.Codec)
	assert.Equal(t, 16, h.Width)
	assert.Equal(t, 16, h.Height)
	assert.Equal(t, video.Fraction{Num: 1, Den: 30}, h.TimeBase)
	assert.Equal(t, uint32(5), h.FrameCount)
	require.Len(t, packets, 5)
	for i, pkt := range packets {
		assert.Equal(t, int64(i), pkt.PTS)
		// 4 byte size prefix, then the visible planes.
		assert.Len(t, pkt.Data, 4+16*16*3/2)
		assert.Equal(t, byte(16+i), pkt.Data[4])
	}

	info, err := runApp(t, "info", "--frames", outPath)
	require.NoError(t, err)
	assert.Contains(t, info, "codec vp9, 16x16")
	assert.Contains(t, info, "frame 4 pts 4 size 388")
	assert.Contains(t, info, "5 frames, 1940 bytes")
}

func TestEncodeFrameLimitAndConfigFile(t *testing.T) {
	skipWithLibvpx(t)

	in := writeY4M(t, 6)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.ivf")
	cfgPath := filepath.Join(dir, "vpxenc.yaml")
	cfg := "encoder:\n  codec: vp8\n  speed: 4\ninput:\n  path: " + in + "\noutput:\n  path: " + outPath + "\nlogging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	_, err := runApp(t, "encode", "-c", cfgPath, "--frames", "3")
	require.NoError(t, err)

	h, packets := readIVF(t, outPath)
	assert.Equal(t, video.CodecVP8, h.Codec)
	assert.Len(t, packets, 3)
}

func TestEncodeRawInput(t *testing.T) {
	skipWithLibvpx(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.nv12")
	frame := make([]byte, 16*16+16*8)
	require.NoError(t, os.WriteFile(in, append(frame, frame...), 0o600))
	outPath := filepath.Join(dir, "out.ivf")

	_, err := runApp(t, "encode", "--codec", "vp8", "-i", in, "--input-kind", "raw",
		"--pixel-format", "nv12", "--width", "16", "--height", "16", "--fps", "25", "-o", outPath)
	require.NoError(t, err)

	h, packets := readIVF(t, outPath)
	assert.Equal(t, video.Fraction{Num: 1, Den: 25}, h.TimeBase)
	assert.Len(t, packets, 2)
}

func TestEncodeErrors(t *testing.T) {
	in := writeY4M(t, 1)

	_, err := runApp(t, "encode", "--codec", "av1", "-i", in)
	assert.ErrorIs(t, err, vpx.ErrUnknownVariant)

	_, err = runApp(t, "encode", "-i", filepath.Join(t.TempDir(), "missing.y4m"))
	assert.Error(t, err)

	_, err = runApp(t, "encode", "--input-kind", "raw", "-i", in)
	assert.Error(t, err)

	if codec.VP8() == nil {
		_, err = runApp(t, "encode", "-i", in, "--require-libvpx",
			"-o", filepath.Join(t.TempDir(), "out.ivf"))
		assert.ErrorIs(t, err, vpx.ErrNoInterface)
	}
}

func TestFormatsCommand(t *testing.T) {
	out, err := runApp(t, "formats", "--codec", "vp8")
	require.NoError(t, err)
	assert.Contains(t, out, "nv12")
	assert.NotContains(t, out, "yuv444p")
	assert.Equal(t, 4, strings.Count(out, "\n"))

	out, err = runApp(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "yuv444p12")

	_, err = runApp(t, "formats", "--codec", "h264")
	assert.Error(t, err)
}

func TestLevelCommand(t *testing.T) {
	out, err := runApp(t, "level", "--width", "1920", "--height", "1080", "--fps", "30", "--bitrate", "5000000")
	require.NoError(t, err)
	assert.Equal(t, "level 4.0\n", out)

	out, err = runApp(t, "level", "--width", "20000", "--height", "20000")
	require.NoError(t, err)
	assert.Equal(t, "no level fits\n", out)
}
