package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func decodeJPEGConfig(t *testing.T, data []byte) image.Config {
	t.Helper()
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not a JPEG: %v", err)
	}
	return cfg
}

func TestNewGenerator_Defaults(t *testing.T) {
	g := NewGenerator(0, -1, 0, nil)
	if g.Width != DefaultWidth || g.Height != DefaultHeight {
		t.Errorf("size = %dx%d, want %dx%d", g.Width, g.Height, DefaultWidth, DefaultHeight)
	}
	if g.Quality != DefaultQuality {
		t.Errorf("Quality = %d, want %d", g.Quality, DefaultQuality)
	}
	if g.Logger == nil {
		t.Error("Logger is nil")
	}

	if g := NewGenerator(10, 10, 200, nil); g.Quality != 100 {
		t.Errorf("Quality = %d, want clamped to 100", g.Quality)
	}
}

func TestGenerate_FitsWithinBounds(t *testing.T) {
	tests := []struct {
		name          string
		srcW, srcH    int
		wantW, wantH  int
		wantSourceFmt string
	}{
		{"tall cover", 600, 900, 300, 450, "image/png"},
		{"wide cover", 900, 300, 300, 100, "image/png"},
		{"small cover is not upscaled", 100, 150, 100, 150, "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(300, 450, 80, nil)
			thumb, err := g.Generate(createTestPNG(t, tt.srcW, tt.srcH))
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if thumb.Fallback {
				t.Fatalf("Generate() fell back: %s", thumb.Warning)
			}
			if thumb.Width != tt.wantW || thumb.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", thumb.Width, thumb.Height, tt.wantW, tt.wantH)
			}
			if thumb.SourceType != tt.wantSourceFmt {
				t.Errorf("SourceType = %q, want %q", thumb.SourceType, tt.wantSourceFmt)
			}
			cfg := decodeJPEGConfig(t, thumb.Data)
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("encoded size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestGenerate_Placeholder(t *testing.T) {
	corruptPNG := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)

	tests := []struct {
		name       string
		data       []byte
		wantSource string
		wantReason string
	}{
		{"nil cover", nil, "", "no cover image"},
		{"text data", []byte("this is not an image"), "text/plain", "not an image"},
		{"corrupt png", corruptPNG, "image/png", "decode failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(120, 180, 80, nil)
			thumb, err := g.Generate(tt.data)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !thumb.Fallback {
				t.Fatal("Generate() should fall back to the placeholder")
			}
			if !strings.HasPrefix(thumb.SourceType, tt.wantSource) {
				t.Errorf("SourceType = %q, want prefix %q", thumb.SourceType, tt.wantSource)
			}
			if !strings.Contains(thumb.Warning, tt.wantReason) {
				t.Errorf("Warning = %q, want it to mention %q", thumb.Warning, tt.wantReason)
			}
			cfg := decodeJPEGConfig(t, thumb.Data)
			if cfg.Width != 120 || cfg.Height != 180 {
				t.Errorf("placeholder size = %dx%d, want 120x180", cfg.Width, cfg.Height)
			}
		})
	}
}

func TestGenerate_PixelLimit(t *testing.T) {
	g := NewGenerator(50, 50, 80, nil)
	g.MaxPixels = 100

	thumb, err := g.Generate(createTestPNG(t, 20, 20))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !thumb.Fallback || !strings.Contains(thumb.Warning, "too large") {
		t.Errorf("Generate() = fallback %v, warning %q; want the pixel limit to apply", thumb.Fallback, thumb.Warning)
	}
}
