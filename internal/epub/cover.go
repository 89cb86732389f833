package epub

// Cover is a cover image read from an archive.
type Cover struct {
	// Path is the archive path of the image.
	Path string
	// MediaType is the manifest media-type, "" if the manifest has none.
	MediaType string
	Data      []byte
}

// ExtractCoverImage returns the raw bytes of the cover image, or nil when
// the package document does not name one. Nothing is written to disk.
func (p *Parser) ExtractCoverImage(epubPath string) ([]byte, error) {
	cover, err := p.ExtractCover(epubPath)
	if err != nil || cover == nil {
		return nil, err
	}
	return cover.Data, nil
}

// ExtractCover is ExtractCoverImage with the archive path and media type of
// the image.
func (p *Parser) ExtractCover(epubPath string) (*Cover, error) {
	archive, opfPath, doc, err := p.readPackage(epubPath)
	if err != nil {
		return nil, err
	}

	href := doc.Metadata.CoverImagePath
	if href == "" {
		p.logger.Debug("no cover image declared", "path", epubPath)
		return nil, nil
	}

	coverPath := archivePath(opfDirectory(opfPath), href)
	data, err := archive.ReadFile(coverPath)
	if err != nil {
		return nil, err
	}

	cover := &Cover{Path: coverPath, Data: data}
	for _, item := range doc.Manifest {
		if item.Href == href {
			cover.MediaType = item.MediaType
		}
	}
	return cover, nil
}
