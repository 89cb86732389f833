// Package importer reads metadata for candidate EPUB files, falling back to
// a title derived from the file name when an archive cannot be read.
package importer

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adamkz007/look-sub000/internal/epub"
)

const defaultWorkers = 4

// MetadataExtractor is the part of epub.Parser the importer needs.
type MetadataExtractor interface {
	ExtractMetadata(epubPath string) (*epub.Metadata, error)
}

// Record is the import result for one file.
type Record struct {
	Path     string
	Metadata epub.Metadata
	// FromFilename is set when Metadata was derived from the file name
	// because extraction failed; Err holds that failure.
	FromFilename bool
	Err          error
}

// Importer extracts metadata for many files concurrently.
type Importer struct {
	extractor MetadataExtractor
	workers   int
	logger    *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers bounds the number of files read at once.
func WithWorkers(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithLogger sets the importer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an Importer.
func New(extractor MetadataExtractor, opts ...Option) *Importer {
	i := &Importer{
		extractor: extractor,
		workers:   defaultWorkers,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run imports paths and returns one record per path, in input order.
// Cancelling ctx stops new files from starting; a file already being read
// runs to completion. The returned error is ctx's error, if any.
func (i *Importer) Run(ctx context.Context, paths []string) ([]Record, error) {
	records := make([]Record, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for n, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[n] = i.importOne(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records, err
	}
	return records, ctx.Err()
}

func (i *Importer) importOne(path string) Record {
	md, err := i.extractor.ExtractMetadata(path)
	if err != nil {
		i.logger.Warn("metadata extraction failed, using file name", "path", path, "error", err)
		return Record{
			Path:         path,
			Metadata:     epub.Metadata{Title: TitleFromFilename(path)},
			FromFilename: true,
			Err:          err,
		}
	}

	record := Record{Path: path, Metadata: *md}
	if record.Metadata.Title == "" {
		record.Metadata.Title = TitleFromFilename(path)
	}
	return record
}

// TitleFromFilename derives a display title from a file path.
func TitleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	return strings.Join(strings.Fields(base), " ")
}
