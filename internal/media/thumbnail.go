package media

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
)

// Thumbnail returns a base64-encoded JPEG no larger than size on its longest side.
func (f *FS) Thumbnail(uri string, size int) (string, error) {
	if size <= 0 {
		size = 256
	}
	img, err := f.open(uri)
	if err != nil {
		return "", err
	}
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
