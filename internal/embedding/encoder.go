// Package embedding produces the vectors stored in the photo library: text
// queries through an OpenAI-compatible embeddings endpoint, images through a
// local perceptual encoder.
package embedding

import "context"

// TextEncoder embeds free-text search queries.
type TextEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// ImageEncoder embeds an image file and reports its pixel dimensions.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, path string) (Encoded, error)
}

type Encoded struct {
	Vector []float32
	Width  int
	Height int
}
