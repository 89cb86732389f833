// Package thumbnail renders cover thumbnails from raw cover image bytes.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultWidth     = 300
	DefaultHeight    = 450
	DefaultQuality   = 85
	defaultMaxPixels = 100 * 1000 * 1000 // 100 megapixels
)

// placeholderColor fills the thumbnail of books without a usable cover.
var placeholderColor = color.NRGBA{R: 0x8a, G: 0x8f, B: 0x98, A: 0xff}

// Generator renders JPEG thumbnails bounded by Width x Height.
type Generator struct {
	Width     int
	Height    int
	Quality   int
	MaxPixels int // Total pixel count limit for decode (width * height)
	Logger    *slog.Logger
}

// Thumbnail holds an encoded thumbnail.
// Fallback is set when Data is the placeholder rather than the cover;
// Warning then says why.
type Thumbnail struct {
	Data       []byte
	Width      int
	Height     int
	SourceType string // sniffed media type of the cover, "" without one
	Fallback   bool
	Warning    string
}

// NewGenerator creates a generator, replacing non-positive settings with
// defaults.
func NewGenerator(width, height, quality int, logger *slog.Logger) *Generator {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	if quality > 100 {
		quality = 100
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		Width:     width,
		Height:    height,
		Quality:   quality,
		MaxPixels: defaultMaxPixels,
		Logger:    logger,
	}
}

// Generate renders a thumbnail of cover. A nil or unusable cover produces
// the placeholder instead of an error; only encoding failures are errors.
func (g *Generator) Generate(cover []byte) (*Thumbnail, error) {
	if len(cover) == 0 {
		return g.placeholder("", "no cover image")
	}

	mt := mimetype.Detect(cover)
	if !strings.HasPrefix(mt.String(), "image/") {
		return g.placeholder(mt.String(), fmt.Sprintf("cover data is %s, not an image", mt.String()))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(cover))
	if err == nil && g.MaxPixels > 0 {
		if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > uint64(g.MaxPixels) {
			return g.placeholder(mt.String(), fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels))
		}
	}

	src, err := imaging.Decode(bytes.NewReader(cover), imaging.AutoOrientation(true))
	if err != nil {
		return g.placeholder(mt.String(), fmt.Sprintf("image decode failed: %v", err))
	}

	thumb := imaging.Fit(src, g.Width, g.Height, imaging.Lanczos)
	data, err := g.encode(thumb)
	if err != nil {
		return nil, err
	}

	return &Thumbnail{
		Data:       data,
		Width:      thumb.Bounds().Dx(),
		Height:     thumb.Bounds().Dy(),
		SourceType: mt.String(),
	}, nil
}

func (g *Generator) placeholder(sourceType, reason string) (*Thumbnail, error) {
	g.Logger.Debug("using placeholder thumbnail", "reason", reason)

	img := imaging.New(g.Width, g.Height, placeholderColor)
	data, err := g.encode(img)
	if err != nil {
		return nil, err
	}
	return &Thumbnail{
		Data:       data,
		Width:      g.Width,
		Height:     g.Height,
		SourceType: sourceType,
		Fallback:   true,
		Warning:    reason,
	}, nil
}

func (g *Generator) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(g.Quality)); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
