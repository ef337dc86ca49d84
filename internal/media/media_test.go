package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestProbe(t *testing.T) {
	info, ok := Probe(pngImage(t, 64, 48))
	if !ok || info.Width != 64 || info.Height != 48 || info.Format != "png" {
		t.Errorf("Probe = %+v, %v, want 64x48 png", info, ok)
	}
	if _, ok := Probe([]byte("not an image")); ok {
		t.Error("Probe accepted text")
	}
	if _, ok := Probe(nil); ok {
		t.Error("Probe accepted empty data")
	}
}

func TestThumbnails(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		wantWidths []int
		lastHeight int
	}{
		{"large landscape", 1600, 900, []int{90, 320, 800, 1280}, 720},
		{"small", 200, 100, []int{90, 200}, 100},
		{"tiny", 50, 50, []int{50}, 50},
		{"portrait", 450, 900, []int{45, 160, 400, 450}, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sizes, err := Thumbnails(pngImage(t, tt.w, tt.h))
			if err != nil {
				t.Fatalf("Thumbnails: %v", err)
			}
			if len(sizes) != len(tt.wantWidths) {
				t.Fatalf("sizes = %d, want %d", len(sizes), len(tt.wantWidths))
			}
			for i, s := range sizes {
				if s.Width != tt.wantWidths[i] {
					t.Errorf("size %d width = %d, want %d", i, s.Width, tt.wantWidths[i])
				}
				if len(s.Data) == 0 {
					t.Errorf("size %d has no data", i)
				}
			}
			if last := sizes[len(sizes)-1]; last.Height != tt.lastHeight {
				t.Errorf("largest height = %d, want %d", last.Height, tt.lastHeight)
			}
		})
	}
}

func TestThumbnailsRejectsGarbage(t *testing.T) {
	if _, err := Thumbnails([]byte("nope")); err == nil {
		t.Error("Thumbnails accepted garbage")
	}
}
