package video

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Fraction is a rational number used for frame rates and time bases.
type Fraction struct {
	Num int64
	Den int64
}

// IsValid reports whether both terms are positive.
func (f Fraction) IsValid() bool {
	return f.Num > 0 && f.Den > 0
}

// Value returns the fraction as a float, or 0 when the denominator is 0.
func (f Fraction) Value() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// Invert swaps numerator and denominator.
func (f Fraction) Invert() Fraction {
	return Fraction{Num: f.Den, Den: f.Num}
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// ParseFraction accepts "30", "30000/1001" or "30:1".
func ParseFraction(s string) (Fraction, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "/:")
	if sep < 0 {
		num, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
		}
		return Fraction{Num: num, Den: 1}, nil
	}

	num, err := strconv.ParseInt(s[:sep], 10, 64)
	if err != nil {
		return Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	den, err := strconv.ParseInt(s[sep+1:], 10, 64)
	if err != nil || den == 0 {
		return Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	return Fraction{Num: num, Den: den}, nil
}

// Rescale converts v from time base from to time base to, rounding half
// away from zero. The product is computed exactly, so large timestamps do
// not lose precision.
func Rescale(v int64, from, to Fraction) int64 {
	if !from.IsValid() || !to.IsValid() {
		return v
	}

	num := new(big.Int).Mul(big.NewInt(v), big.NewInt(from.Num))
	num.Mul(num, big.NewInt(to.Den))
	den := new(big.Int).Mul(big.NewInt(from.Den), big.NewInt(to.Num))

	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Abs(r).Lsh(r, 1).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(int64(num.Sign())))
	}
	return q.Int64()
}

// Caps describes a raw video stream.
type Caps struct {
	Format PixelFormat
	Width  int
	Height int
	// FPS may be left zero when the source does not know its frame rate.
	FPS Fraction
}

// IsValid reports whether the caps describe a usable picture.
func (c Caps) IsValid() bool {
	return c.Format != FormatNone && c.Format.PlaneCount() > 0 && c.Width > 0 && c.Height > 0
}

func (c Caps) String() string {
	return fmt.Sprintf("%s %dx%d@%s", c.Format, c.Width, c.Height, c.FPS)
}

// CodecID names a compressed video format.
type CodecID string

const (
	CodecNone CodecID = ""
	CodecVP8  CodecID = "vp8"
	CodecVP9  CodecID = "vp9"
)

// CompressedCaps describes an encoded stream. The zero value means "no caps".
type CompressedCaps struct {
	Codec  CodecID
	Width  int
	Height int
	FPS    Fraction
}

// IsEmpty reports whether c is the zero value.
func (c CompressedCaps) IsEmpty() bool {
	return c == CompressedCaps{}
}

func (c CompressedCaps) String() string {
	if c.IsEmpty() {
		return "none"
	}
	return fmt.Sprintf("%s %dx%d@%s", c.Codec, c.Width, c.Height, c.FPS)
}
