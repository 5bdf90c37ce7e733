package vpx

import (
	"math"

	"github.com/opd-ai/vpxenc/av/video"
)

// levelLimits is one row of the VP9 level definitions
// (https://www.webmproject.org/vp9/levels).
type levelLimits struct {
	level          int
	lumaSampleRate uint64
	maxPictureSize uint64
	maxBitrate     int // kbit/s
	maxDimension   int
}

var vp9Levels = []levelLimits{
	{10, 829440, 36864, 200, 512},
	{11, 2764800, 73728, 800, 768},
	{20, 4608000, 122880, 1800, 960},
	{21, 9216000, 245760, 3600, 1344},
	{30, 20736000, 552960, 7200, 2048},
	{31, 36864000, 983040, 12000, 2752},
	{40, 83558400, 2228224, 18000, 4160},
	{41, 160432128, 2228224, 30000, 4160},
	{50, 311951360, 8912896, 60000, 8384},
	{51, 588251136, 8912896, 120000, 8384},
	{52, 1176502272, 8912896, 180000, 8384},
	{60, 1176502272, 35651584, 180000, 16832},
	{61, 2353004544, 35651584, 240000, 16832},
	{62, 4706009088, 35651584, 480000, 16832},
}

// NoLevel is returned when a stream exceeds every defined level.
const NoLevel = 0

// SelectLevel returns the lowest VP9 level whose limits cover a
// width x height stream at fps and bitrate (bit/s), or NoLevel.
func SelectLevel(width, height int, fps video.Fraction, bitrate int) int {
	if width <= 0 || height <= 0 {
		return NoLevel
	}

	pictureSize := uint64(width) * uint64(height)
	sampleRate := uint64(math.Round(float64(pictureSize) * fps.Value()))
	dimension := max(width, height)

	for _, l := range vp9Levels {
		if l.lumaSampleRate >= sampleRate &&
			l.maxPictureSize >= pictureSize &&
			1000*int64(l.maxBitrate) >= int64(bitrate) &&
			l.maxDimension >= dimension {
			return l.level
		}
	}

	return NoLevel
}

// Levels lists every defined level in ascending order.
func Levels() []int {
	levels := make([]int, len(vp9Levels))
	for i, l := range vp9Levels {
		levels[i] = l.level
	}
	return levels
}
