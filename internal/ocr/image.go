package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Prepare decodes a page image, downscales it so the long edge is at most
// maxDim pixels and re-encodes it as PNG. A non-positive maxDim keeps the
// original size.
func Prepare(data []byte, maxDim int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}

	b := img.Bounds()
	if w, h := targetSize(b.Dx(), b.Dy(), maxDim); w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}

func targetSize(w, h, maxDim int) (int, int) {
	long := max(w, h)
	if maxDim <= 0 || long <= maxDim {
		return w, h
	}
	tw, th := w*maxDim/long, h*maxDim/long
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}
