package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelFormatNames(t *testing.T) {
	for _, f := range PixelFormats() {
		t.Run(f.String(), func(t *testing.T) {
			parsed, err := ParsePixelFormat(f.String())
			require.NoError(t, err)
			assert.Equal(t, f, parsed)
			assert.NotZero(t, f.PlaneCount())
		})
	}

	_, err := ParsePixelFormat("bgr0")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, "none", FormatNone.String())
	assert.Zero(t, FormatNone.PlaneCount())
}

func TestPixelFormatDepth(t *testing.T) {
	tests := []struct {
		format PixelFormat
		depth  int
		bps    int
	}{
		{FormatYUV420P, 8, 1},
		{FormatNV12, 8, 1},
		{FormatYUV420P10, 10, 2},
		{FormatYUV444P12, 12, 2},
		{FormatRGB24, 8, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.depth, tt.format.BitDepth(), tt.format.String())
		assert.Equal(t, tt.bps, tt.format.BytesPerSample(), tt.format.String())
	}
	assert.False(t, FormatRGB24.IsYUV())
	assert.True(t, FormatNV12.IsYUV())
}

func TestParseFraction(t *testing.T) {
	tests := []struct {
		in      string
		want    Fraction
		wantErr bool
	}{
		{"30", Fraction{30, 1}, false},
		{"30000/1001", Fraction{30000, 1001}, false},
		{"25:1", Fraction{25, 1}, false},
		{"1/0", Fraction{}, true},
		{"abc", Fraction{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFraction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFraction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, Fraction{1, 30}, Fraction{30, 1}.Invert())
	assert.Equal(t, int64(3000), Rescale(1, Fraction{1, 30}, Fraction{1, 90000}))
}

func TestRescale(t *testing.T) {
	tests := []struct {
		name     string
		v        int64
		from, to Fraction
		want     int64
	}{
		{"frames to rtp clock", 1, Fraction{1, 30}, Fraction{1, 90000}, 3000},
		{"ms to frames", 100, Fraction{1, 1000}, Fraction{1, 30}, 3},
		{"round down", 2, Fraction{1, 5}, Fraction{1, 1}, 0},
		{"half rounds up", 1, Fraction{1, 4}, Fraction{1, 2}, 1},
		{"negative half rounds away", -1, Fraction{1, 4}, Fraction{1, 2}, -1},
		{"invalid time base", 7, Fraction{}, Fraction{1, 2}, 7},
		{"beyond float precision", 1<<53 + 1, Fraction{1, 90000}, Fraction{1, 90000}, 1<<53 + 1},
		{"large ntsc pts", 1<<50 + 3, Fraction{1001, 30000}, Fraction{1001, 30000}, 1<<50 + 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rescale(tt.v, tt.from, tt.to))
		})
	}
}

func TestNewFrameLayout(t *testing.T) {
	tests := []struct {
		name    string
		caps    Caps
		strides []int
		heights []int
	}{
		{"yuv420p_odd", Caps{Format: FormatYUV420P, Width: 5, Height: 3}, []int{5, 3, 3}, []int{3, 2, 2}},
		{"nv12", Caps{Format: FormatNV12, Width: 4, Height: 4}, []int{4, 4}, []int{4, 2}},
		{"yuv440p", Caps{Format: FormatYUV440P, Width: 4, Height: 4}, []int{4, 4, 4}, []int{4, 2, 2}},
		{"yuv422p10", Caps{Format: FormatYUV422P10, Width: 4, Height: 2}, []int{8, 4, 4}, []int{2, 2, 2}},
		{"rgb24", Caps{Format: FormatRGB24, Width: 2, Height: 2}, []int{6}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(tt.caps)
			require.NoError(t, err)
			assert.Equal(t, tt.strides, frame.Strides)
			for plane := range frame.Planes {
				assert.Equal(t, tt.heights[plane], frame.PlaneHeight(plane))
				assert.Len(t, frame.Planes[plane], tt.strides[plane]*tt.heights[plane])
			}
			assert.NoError(t, frame.Validate())
		})
	}

	_, err := NewFrame(Caps{Format: FormatYUV420P})
	assert.ErrorIs(t, err, ErrInvalidCaps)
}

func TestFrameLineAppliesSubsampling(t *testing.T) {
	frame, err := NewFrame(Caps{Format: FormatYUV420P, Width: 4, Height: 4})
	require.NoError(t, err)

	frame.Planes[1][0] = 1
	frame.Planes[1][2] = 2

	assert.Equal(t, byte(1), frame.Line(1, 0)[0])
	assert.Equal(t, byte(1), frame.Line(1, 1)[0])
	assert.Equal(t, byte(2), frame.Line(1, 2)[0])
	assert.Equal(t, byte(2), frame.Line(1, 3)[0])
	assert.Len(t, frame.Line(0, 3), 4)
	assert.Equal(t, 1, frame.HeightDiv(2))
	assert.Equal(t, 0, frame.HeightDiv(0))
}

func TestFrameValidateShortPlane(t *testing.T) {
	frame, err := NewFrame(Caps{Format: FormatYUV420P, Width: 4, Height: 4})
	require.NoError(t, err)

	frame.Planes[2] = frame.Planes[2][:2]
	assert.ErrorIs(t, frame.Validate(), ErrShortFrame)

	frame.Strides[0] = 2
	assert.ErrorIs(t, frame.Validate(), ErrShortFrame)
}

func TestCompressedCaps(t *testing.T) {
	assert.True(t, CompressedCaps{}.IsEmpty())
	caps := CompressedCaps{Codec: CodecVP9, Width: 640, Height: 480, FPS: Fraction{30, 1}}
	assert.False(t, caps.IsEmpty())
	assert.Equal(t, "vp9 640x480@30/1", caps.String())

	pkt := CompressedPacket{Flags: PacketFlagKeyFrame}
	assert.True(t, pkt.IsKeyFrame())
	assert.False(t, pkt.IsHeader())
}
