package embedding

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const perceptualSide = 16

// PerceptualEncoder reduces an image to a mean-centred 16x16 grayscale vector.
// Re-encodes, resizes and light edits of the same shot stay close in cosine
// terms, which is what duplicate detection needs. It carries no semantic
// meaning; text search requires vectors from a shared text/image model.
type PerceptualEncoder struct{}

func (PerceptualEncoder) EncodeImage(ctx context.Context, path string) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Encoded{}, fmt.Errorf("open image %s: %w", path, err)
	}
	b := img.Bounds()
	return Encoded{
		Vector: PerceptualVector(img),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// PerceptualVector computes the encoder's vector for an already decoded image.
func PerceptualVector(img image.Image) []float32 {
	small := imaging.Resize(imaging.Grayscale(img), perceptualSide, perceptualSide, imaging.Box)
	vec := make([]float32, perceptualSide*perceptualSide)
	var sum float64
	for y := 0; y < perceptualSide; y++ {
		for x := 0; x < perceptualSide; x++ {
			off := y*small.Stride + x*4
			v := float64(small.Pix[off])
			vec[y*perceptualSide+x] = float32(v)
			sum += v
		}
	}
	mean := float32(sum / float64(len(vec)))
	var norm float64
	for i := range vec {
		vec[i] -= mean
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
