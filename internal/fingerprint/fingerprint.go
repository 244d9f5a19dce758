// Package fingerprint computes 64-bit difference hashes (dHash) of images.
//
// An image is reduced to a 9x8 grayscale grid and each of the 64 bits records
// whether a pixel is brighter than its right-hand neighbour. Visually similar
// images produce fingerprints with a small Hamming distance.
package fingerprint

import (
	"fmt"
	"image"
	"image/color"
	"math/bits"
	"strconv"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

const (
	// GridWidth is one column wider than GridHeight so every row yields
	// eight left/right comparisons.
	GridWidth  = 9
	GridHeight = 8

	// Bits is the fingerprint width.
	Bits = 64
)

// Fingerprint is a dHash value. Bit y*8+x is set when grid pixel (x,y)
// is strictly brighter than (x+1,y).
type Fingerprint uint64

// String returns the decimal form, which survives transports that cannot
// hold a full 64-bit integer.
func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 10)
}

// Parse reads the decimal form produced by String.
func Parse(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}

// Hash computes the fingerprint of img. It is a pure function of the pixel
// content.
func Hash(img image.Image) Fingerprint {
	if img.Bounds().Empty() {
		return 0
	}

	small := resize.Resize(GridWidth, GridHeight, grayscale(img), resize.Lanczos3)
	b := small.Bounds()

	var f Fingerprint
	for y := 0; y < GridHeight; y++ {
		for x := 0; x < GridWidth-1; x++ {
			left := luminance(small.At(b.Min.X+x, b.Min.Y+y))
			right := luminance(small.At(b.Min.X+x+1, b.Min.Y+y))
			if left > right {
				f |= 1 << uint(y*8+x)
			}
		}
	}
	return f
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Similarity is the fraction of matching bits, in [0,1].
func Similarity(a, b Fingerprint) float64 {
	return 1 - float64(Distance(a, b))/Bits
}

func grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

func luminance(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}
