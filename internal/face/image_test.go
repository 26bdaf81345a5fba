package face

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"faceattend/internal/domain"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeDataURL(t *testing.T) {
	img, err := DecodeDataURL(pngDataURL(t, 8, 8))
	if err != nil {
		t.Fatalf("DecodeDataURL() error: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestDecodeDataURLRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not a data url", "https://example.com/face.png"},
		{"wrong media type", "data:text/plain;base64,aGVsbG8="},
		{"missing base64 marker", "data:image/png,rawbytes"},
		{"invalid base64", "data:image/png;base64,!!!not-base64!!!"},
		{"not an image", "data:image/png;base64," + "aGVsbG8gd29ybGQ="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURL(tt.input)
			if !domain.Is(err, domain.KindValidation) {
				t.Errorf("DecodeDataURL(%q) error = %v, want validation error", tt.input, err)
			}
		})
	}
}

func TestDecodeDataURLDownscales(t *testing.T) {
	img, err := DecodeDataURL(pngDataURL(t, 1024, 768))
	if err != nil {
		t.Fatalf("DecodeDataURL() error: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > maxSide || b.Dy() > maxSide {
		t.Errorf("frame not downscaled: %v", b)
	}
	// Aspect ratio preserved.
	if b.Dx() != maxSide {
		t.Errorf("long edge = %d, want %d", b.Dx(), maxSide)
	}
}
