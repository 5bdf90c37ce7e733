package vpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/vpxenc/av/video"
	codec "github.com/opd-ai/vpxenc/codec/vpx"
)

type optionChange struct {
	name  string
	value any
}

func TestOptionNotifications(t *testing.T) {
	enc := NewEncoder(VariantVP8, nil)

	var changes []optionChange
	enc.OnOptionChanged(func(name string, value any) {
		changes = append(changes, optionChange{name, value})
	})

	enc.SetBitrate(DefaultBitrate)
	enc.SetSpeed(DefaultSpeed)
	enc.SetDeadline(codec.DeadlineRealtime)
	assert.Empty(t, changes, "setting the current value does not notify")

	enc.SetBitrate(2000000)
	enc.SetBitrate(2000000)
	enc.SetDeadline(codec.DeadlineGoodQuality)
	enc.SetLossless(true)
	enc.SetTuneContent(TuneContentFilm)
	enc.SetFillGaps(true)
	enc.SetErrorResilient(codec.ErrorResilientPartitions)
	enc.SetGOP(500)
	enc.SetSpeed(3)

	assert.Equal(t, []optionChange{
		{OptionBitrate, 2000000},
		{OptionDeadline, codec.DeadlineGoodQuality},
		{OptionLossless, true},
		{OptionTuneContent, TuneContentFilm},
		{OptionFillGaps, true},
		{OptionErrorResilient, codec.ErrorResilientPartitions},
		{OptionGOP, 500},
		{OptionSpeed, 3},
	}, changes)

	assert.Equal(t, Options{
		Bitrate:        2000000,
		GOP:            500,
		ErrorResilient: codec.ErrorResilientPartitions,
		Deadline:       codec.DeadlineGoodQuality,
		Speed:          3,
		Lossless:       true,
		TuneContent:    TuneContentFilm,
		FillGaps:       true,
	}, enc.Options())
}

func TestResetOptions(t *testing.T) {
	enc := NewEncoder(VariantVP9, nil)
	enc.SetSpeed(1)
	enc.SetLossless(true)

	var changes []string
	enc.OnOptionChanged(func(name string, _ any) { changes = append(changes, name) })

	enc.ResetOptions()
	assert.Equal(t, DefaultOptions(), enc.Options())
	assert.Equal(t, []string{OptionSpeed, OptionLossless}, changes)

	enc.SetTuneContent(TuneContentScreen)
	enc.ResetTuneContent()
	enc.SetDeadline(codec.DeadlineBestQuality)
	enc.ResetDeadline()
	enc.SetGOP(1)
	enc.ResetGOP()
	assert.Equal(t, DefaultOptions(), enc.Options())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 16, opts.Speed)
	assert.Equal(t, codec.DeadlineRealtime, opts.Deadline)
	assert.Equal(t, codec.ErrorResilientNone, opts.ErrorResilient)
	assert.Equal(t, TuneContentDefault, opts.TuneContent)
	assert.False(t, opts.Lossless)
	assert.False(t, opts.FillGaps)
}

func TestParseTuneContent(t *testing.T) {
	for _, tc := range []TuneContent{TuneContentDefault, TuneContentScreen, TuneContentFilm} {
		got, err := ParseTuneContent(tc.String())
		require.NoError(t, err)
		assert.Equal(t, tc, got)
	}
	_, err := ParseTuneContent("animation")
	assert.ErrorIs(t, err, ErrUnknownTuneContent)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("VP9")
	require.NoError(t, err)
	assert.Equal(t, VariantVP9, v)

	_, err = ParseVariant("av1")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestKeyFrameDistance(t *testing.T) {
	tests := []struct {
		gop  int
		fps  video.Fraction
		want uint
	}{
		{1000, video.Fraction{Num: 30, Den: 1}, 30},
		{2000, video.Fraction{Num: 30000, Den: 1001}, 60},
		{10, video.Fraction{Num: 30, Den: 1}, 1},
		{0, video.Fraction{Num: 30, Den: 1}, 1},
		{-5, video.Fraction{Num: 30, Den: 1}, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyFrameDistance(tt.gop, tt.fps), "gop %d at %s", tt.gop, tt.fps)
	}
}

func TestSpeedScaling(t *testing.T) {
	tests := []struct {
		speed int
		vp8   int
		vp9   int
	}{
		{-3, 0, 0},
		{0, 0, 0},
		{8, 8, 4},
		{16, 16, 9},
		{40, 16, 9},
	}

	for _, tt := range tests {
		vp8 := VariantVP8.Controls(Tuning{Speed: tt.speed})
		vp9 := VariantVP9.Controls(Tuning{Speed: tt.speed})
		assert.Equal(t, Control{codec.CtrlCPUUsed, tt.vp8}, vp8[0], "vp8 speed %d", tt.speed)
		assert.Equal(t, Control{codec.CtrlCPUUsed, tt.vp9}, vp9[0], "vp9 speed %d", tt.speed)
	}
}
