package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoders for uploaded photos
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the declared dimensions of a photo. Decoders allocate the full pixel
// buffer from the header before reading any data.
const MaxPixels = 40_000_000

var (
	// ErrEmptyImage is returned when Detect is called without image bytes
	ErrEmptyImage = errors.New("empty image")
	// ErrImageTooLarge is returned for photos declaring more than MaxPixels pixels
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// DecodeImage decodes a JPEG, PNG or WebP photo of at most MaxPixels pixels
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// resizeRGBA scales img to w x h
func resizeRGBA(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// pixelsUint8 lays out img as an NHWC uint8 tensor with batch 1
func pixelsUint8(img *image.RGBA) []uint8 {
	b := img.Bounds()
	out := make([]uint8, 0, b.Dx()*b.Dy()*3)
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}

// pixelsFloat32 lays out img as an NHWC float32 tensor normalized to [-1, 1]
func pixelsFloat32(img *image.RGBA) []float32 {
	raw := pixelsUint8(img)
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = (float32(v) - 127.5) / 127.5
	}
	return out
}
