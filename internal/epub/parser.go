package epub

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// Parser turns EPUB archives into Books. It holds no per-parse state and
// may be used from several goroutines at once.
type Parser struct {
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a Parser. Without options it logs nothing.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse runs Parser.Parse with a parser that logs nothing.
func Parse(epubPath, dest string) (*Book, error) {
	return defaultParser.Parse(epubPath, dest)
}

// ExtractMetadata runs Parser.ExtractMetadata with a parser that logs nothing.
func ExtractMetadata(epubPath string) (*Metadata, error) {
	return defaultParser.ExtractMetadata(epubPath)
}

// ExtractCoverImage runs Parser.ExtractCoverImage with a parser that logs
// nothing.
func ExtractCoverImage(epubPath string) ([]byte, error) {
	return defaultParser.ExtractCoverImage(epubPath)
}

// Parse extracts the archive at epubPath into dest and assembles the book.
// dest is created if needed; the caller owns it afterwards.
func (p *Parser) Parse(epubPath, dest string) (*Book, error) {
	archive, err := OpenArchive(epubPath)
	if err != nil {
		return nil, err
	}
	if err := archive.ExtractAll(dest); err != nil {
		return nil, err
	}
	p.logger.Debug("extracted archive", "path", epubPath, "dest", dest, "entries", len(archive.Entries()))

	_, containerData, err := readExtracted(archive, dest, containerPath)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidEPUBStructure, Path: containerPath, Detail: "not found", Err: err}
	}
	opfPath, err := parseContainer(containerData)
	if err != nil {
		return nil, err
	}

	opfPath, opfData, err := readExtracted(archive, dest, opfPath)
	if err != nil {
		return nil, pathError(ErrMissingContent, opfPath, err)
	}
	doc, err := parsePackage(opfData)
	if err != nil {
		return nil, withPath(err, opfPath)
	}
	p.logger.Debug("parsed package document", "opf", opfPath, "version", doc.Version,
		"manifest", len(doc.Manifest), "spine", len(doc.Spine))

	book := p.assemble(doc, opfPath)
	book.ExtractedRoot = dest
	if len(book.Spine) == 0 {
		return nil, newError(ErrInvalidEPUBStructure, "spine is empty")
	}

	p.applyTitles(book, doc, func(href string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dest, filepath.FromSlash(archivePath(book.OPFDirectory, href))))
	})
	return book, nil
}

// readExtracted reads the extracted copy of an archive entry. The name is
// resolved with Archive.Lookup, so it matches the same entry as the
// in-memory readers; the entry's stored name is returned.
func readExtracted(archive *Archive, dest, name string) (string, []byte, error) {
	entry, ok := archive.Lookup(name)
	if !ok {
		return name, nil, os.ErrNotExist
	}
	target, err := extractionTarget(dest, entry.Name)
	if err != nil {
		return name, nil, err
	}
	data, err := os.ReadFile(target)
	return normalizePath(entry.Name), data, err
}

// ExtractMetadata reads only container.xml and the package document from
// the archive. Nothing is written to disk.
func (p *Parser) ExtractMetadata(epubPath string) (*Metadata, error) {
	_, _, doc, err := p.readPackage(epubPath)
	if err != nil {
		return nil, err
	}
	md := doc.Metadata
	return &md, nil
}

// readPackage opens the archive and parses its package document in memory.
func (p *Parser) readPackage(epubPath string) (*Archive, string, *packageDocument, error) {
	archive, err := OpenArchive(epubPath)
	if err != nil {
		return nil, "", nil, err
	}

	containerData, err := archive.ReadFile(containerPath)
	if errors.Is(err, ErrMissingContent) {
		return nil, "", nil, &Error{Kind: ErrInvalidEPUBStructure, Path: containerPath, Detail: "not found"}
	}
	if err != nil {
		return nil, "", nil, err
	}
	opfPath, err := parseContainer(containerData)
	if err != nil {
		return nil, "", nil, err
	}

	opfData, err := archive.ReadFile(opfPath)
	if err != nil {
		return nil, "", nil, err
	}
	doc, err := parsePackage(opfData)
	if err != nil {
		return nil, "", nil, withPath(err, opfPath)
	}
	return archive, opfPath, doc, nil
}

// assemble builds the manifest map and the spine of a book.
func (p *Parser) assemble(doc *packageDocument, opfPath string) *Book {
	manifest := doc.manifestMap()
	spine, dropped := buildSpine(doc.Spine, manifest)
	for _, id := range dropped {
		p.logger.Warn("spine item not found in manifest, skipping", "idref", id)
	}

	return &Book{
		Metadata:         doc.Metadata,
		Spine:            spine,
		Manifest:         manifest,
		OPFDirectory:     opfDirectory(opfPath),
		OPFPath:          opfPath,
		DroppedSpineRefs: dropped,
	}
}

// applyTitles fills spine titles from the table of contents and
// synthesizes "Chapter N" for the rest. TOC failures only cost titles.
func (p *Parser) applyTitles(book *Book, doc *packageDocument, read func(href string) ([]byte, error)) {
	titles := titleMap{}
	if toc, ok := p.findTOC(doc, book.Manifest); ok {
		parsed, err := p.loadTOC(toc, read)
		if err != nil {
			p.logger.Warn("failed to load table of contents", "href", toc.Href, "error", err)
		} else {
			titles = parsed
			book.TOCHref = toc.Href
		}
	}

	for i := range book.Spine {
		item := &book.Spine[i]
		if title, ok := titles[tocKey("", item.Href)]; ok {
			item.Title = title
			continue
		}
		item.Title = fmt.Sprintf("Chapter %d", item.Index+1)
	}
}

// findTOC returns the manifest item named by the spine toc attribute, or
// failing that the item carrying the nav property.
func (p *Parser) findTOC(doc *packageDocument, manifest map[string]ManifestItem) (ManifestItem, bool) {
	if doc.TOCID != "" {
		if item, ok := manifest[doc.TOCID]; ok {
			return item, true
		}
		p.logger.Warn("spine toc not found in manifest", "toc", doc.TOCID)
	}
	for _, item := range doc.Manifest {
		if item.HasProperty("nav") {
			return item, true
		}
	}
	return ManifestItem{}, false
}

func (p *Parser) loadTOC(toc ManifestItem, read func(href string) ([]byte, error)) (titleMap, error) {
	data, err := read(toc.Href)
	if err != nil {
		return nil, pathError(ErrMissingContent, toc.Href, err)
	}
	titles, err := parseTOC(data, path.Dir(toc.Href))
	if err != nil {
		return nil, withPath(err, toc.Href)
	}
	p.logger.Debug("parsed table of contents", "href", toc.Href, "entries", len(titles))
	return titles, nil
}

// opfDirectory returns the directory of the package document, "" at the
// archive root.
func opfDirectory(opfPath string) string {
	dir := path.Dir(opfPath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// archivePath resolves a manifest href to a path inside the archive.
func archivePath(opfDir, href string) string {
	return tocKey(opfDir, href)
}
