package epub

import (
	"path/filepath"
)

// Book is the fully resolved result of parsing one archive.
type Book struct {
	Metadata Metadata
	Spine    []SpineItem
	Manifest map[string]ManifestItem // id -> item

	// ExtractedRoot is the directory the archive was unpacked into. The
	// caller owns it and is responsible for removing it.
	ExtractedRoot string
	// OPFDirectory is the directory of the package document inside the
	// archive, "" when it sits at the root.
	OPFDirectory string
	OPFPath      string

	// TOCHref is the manifest href of the table of contents used for
	// chapter titles, "" if none was resolved.
	TOCHref string

	// DroppedSpineRefs lists itemref idrefs that had no manifest entry.
	DroppedSpineRefs []string
}

// ResolvedPath returns the on-disk location of a manifest href.
func (b *Book) ResolvedPath(href string) string {
	return filepath.Join(b.ExtractedRoot, filepath.FromSlash(b.OPFDirectory), filepath.FromSlash(href))
}

// Metadata holds the Dublin Core fields read from the package document.
// Empty strings mean the field was absent.
type Metadata struct {
	Title          string
	Authors        []string
	Language       string
	Publisher      string
	Description    string
	CoverImagePath string // manifest href, relative to the OPF directory
	Identifier     string
	Date           string
}

// SpineItem is one entry of the reading order. Index is the canonical
// chapter index used by downstream consumers.
type SpineItem struct {
	ID        string
	Href      string
	MediaType string
	Title     string
	Index     int
	Linear    bool
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares the given property.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}
