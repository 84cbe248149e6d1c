package transcode

import (
	"bytes"
	"fmt"

	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"
)

const paletteSampleEdge = 256

// Palette returns up to n dominant colors of an encoded image as #rrggbb.
// The image is downsampled first; clustering cost grows with pixel count.
func Palette(data []byte, n int) ([]string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for palette: %w", err)
	}
	img = imaging.Fit(img, paletteSampleEdge, paletteSampleEdge, imaging.Box)

	colors := dominantcolor.FindN(img, n)
	out := make([]string, 0, len(colors))
	for _, c := range colors {
		out = append(out, dominantcolor.Hex(c))
	}
	return out, nil
}
