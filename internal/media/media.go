// Package media inspects uploaded images the way the platform does on receipt:
// it reads their dimensions and renders the thumbnail ladder served as PhotoSize.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ThumbnailSides are the longest sides of the sizes generated for a photo.
var ThumbnailSides = []int{90, 320, 800, 1280}

// MaxPhotoSide caps the largest stored size.
const MaxPhotoSide = 1280

const thumbQuality = 85

// Info describes a decodable image.
type Info struct {
	Width  int
	Height int
	Format string
}

// Probe reads the image header of data.
func Probe(data []byte) (Info, bool) {
	if len(data) == 0 {
		return Info{}, false
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, false
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, true
}

// Size is one rendered size of a photo.
type Size struct {
	Width  int
	Height int
	Data   []byte // JPEG
}

// Thumbnails decodes data and renders every size in ThumbnailSides smaller than
// the image, followed by the image itself capped at MaxPhotoSide. Sizes are in
// ascending order.
func Thumbnails(data []byte) ([]Size, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())

	var sizes []Size
	for _, side := range ThumbnailSides {
		if side >= longest || side >= MaxPhotoSide {
			break
		}
		s, err := render(imaging.Fit(img, side, side, imaging.Lanczos))
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	if longest > MaxPhotoSide {
		img = imaging.Fit(img, MaxPhotoSide, MaxPhotoSide, imaging.Lanczos)
	}
	s, err := render(img)
	if err != nil {
		return nil, err
	}
	return append(sizes, s), nil
}

func render(img image.Image) (Size, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return Size{}, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy(), Data: buf.Bytes()}, nil
}
