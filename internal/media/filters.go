package media

import (
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

type filterFunc func(image.Image) image.Image

var filters = map[string]filterFunc{
	"grayscale": func(img image.Image) image.Image { return imaging.Grayscale(img) },
	"blur":      func(img image.Image) image.Image { return imaging.Blur(img, 3) },
	"sharpen":   func(img image.Image) image.Image { return imaging.Sharpen(img, 1.5) },
	"invert":    func(img image.Image) image.Image { return imaging.Invert(img) },
	"contrast":  func(img image.Image) image.Image { return imaging.AdjustContrast(img, 25) },
	"bright":    func(img image.Image) image.Image { return imaging.AdjustBrightness(img, 15) },
	"vivid":     func(img image.Image) image.Image { return imaging.AdjustSaturation(img, 40) },
	"sepia":     sepia,
}

var filterAliases = map[string]string{
	"greyscale":     "grayscale",
	"gray":          "grayscale",
	"black_white":   "grayscale",
	"bw":            "grayscale",
	"black & white": "grayscale",
	"brighten":      "bright",
	"saturate":      "vivid",
	"vintage":       "sepia",
}

func normalizeFilter(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := filterAliases[name]; ok {
		return alias
	}
	return name
}

func lookupFilter(name string) (filterFunc, bool) {
	fn, ok := filters[normalizeFilter(name)]
	return fn, ok
}

// FilterNames lists the supported filter names, sorted.
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sepia(img image.Image) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		return color.NRGBA{
			R: clamp(0.393*r + 0.769*g + 0.189*b),
			G: clamp(0.349*r + 0.686*g + 0.168*b),
			B: clamp(0.272*r + 0.534*g + 0.131*b),
			A: c.A,
		}
	})
}

func clamp(v float64) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
