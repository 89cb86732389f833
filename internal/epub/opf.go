package epub

import (
	"encoding/xml"
	"strings"
)

// packageDocument is the result of a package document parse.
type packageDocument struct {
	Version  string
	Metadata Metadata
	// Manifest holds items in document order; ids may repeat.
	Manifest []ManifestItem
	Spine    []itemRef
	// TOCID is the spine toc attribute, a manifest id.
	TOCID string
}

// itemRef represents an itemref in the spine
type itemRef struct {
	IDRef  string
	Linear bool
}

// metadataFields maps metadata element local names to the field they fill.
var metadataFields = map[string]func(*Metadata, string){
	"title":       func(m *Metadata, v string) { setOnce(&m.Title, v) },
	"creator":     func(m *Metadata, v string) { m.Authors = append(m.Authors, v) },
	"language":    func(m *Metadata, v string) { setOnce(&m.Language, v) },
	"publisher":   func(m *Metadata, v string) { setOnce(&m.Publisher, v) },
	"description": func(m *Metadata, v string) { setOnce(&m.Description, v) },
	"identifier":  func(m *Metadata, v string) { setOnce(&m.Identifier, v) },
	"date":        func(m *Metadata, v string) { setOnce(&m.Date, v) },
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// opfParser is the package document state machine.
type opfParser struct {
	doc packageDocument

	inMetadata bool
	// field is the metadata element whose text is being collected.
	field string
	text  strings.Builder

	coverHref   string
	coverMetaID string
}

func (p *opfParser) startElement(name string, attrs []xml.Attr) {
	switch name {
	case "package":
		p.doc.Version = attr(attrs, "version")
	case "metadata":
		p.inMetadata = true
	case "meta":
		if p.inMetadata && attr(attrs, "name") == "cover" && p.coverMetaID == "" {
			p.coverMetaID = strings.TrimSpace(attr(attrs, "content"))
		}
	case "item":
		item := ManifestItem{
			ID:         attr(attrs, "id"),
			Href:       attr(attrs, "href"),
			MediaType:  attr(attrs, "media-type"),
			Properties: strings.Fields(attr(attrs, "properties")),
		}
		if item.HasProperty("cover-image") && p.coverHref == "" {
			p.coverHref = item.Href
		}
		p.doc.Manifest = append(p.doc.Manifest, item)
	case "spine":
		p.doc.TOCID = attr(attrs, "toc")
	case "itemref":
		p.doc.Spine = append(p.doc.Spine, itemRef{
			IDRef:  attr(attrs, "idref"),
			Linear: attr(attrs, "linear") != "no",
		})
	default:
		if _, ok := metadataFields[name]; ok && p.inMetadata {
			p.field = name
			p.text.Reset()
		}
	}
}

func (p *opfParser) characters(text []byte) {
	if p.field != "" {
		p.text.Write(text)
	}
}

func (p *opfParser) endElement(name string) {
	if name == "metadata" {
		p.inMetadata = false
		p.field = ""
		return
	}
	if p.field == "" || name != p.field {
		return
	}
	if v := strings.TrimSpace(p.text.String()); v != "" {
		metadataFields[p.field](&p.doc.Metadata, v)
	}
	p.field = ""
}

// finish resolves the cover image. A cover-image property wins over a
// meta name="cover" reference.
func (p *opfParser) finish() {
	switch {
	case p.coverHref != "":
		p.doc.Metadata.CoverImagePath = p.coverHref
	case p.coverMetaID != "":
		for _, item := range p.doc.Manifest {
			if item.ID == p.coverMetaID {
				p.doc.Metadata.CoverImagePath = item.Href
			}
		}
	}
}

// parsePackage parses a package document.
func parsePackage(data []byte) (*packageDocument, error) {
	p := &opfParser{}
	if err := decodeXML(data, p); err != nil {
		return nil, err
	}
	p.finish()
	return &p.doc, nil
}

// manifestMap indexes items by id; a repeated id keeps the last item.
func (d *packageDocument) manifestMap() map[string]ManifestItem {
	m := make(map[string]ManifestItem, len(d.Manifest))
	for _, item := range d.Manifest {
		m[item.ID] = item
	}
	return m
}

// buildSpine resolves itemrefs against the manifest. Unresolvable idrefs
// are dropped and returned separately; indices stay contiguous.
func buildSpine(refs []itemRef, manifest map[string]ManifestItem) (spine []SpineItem, dropped []string) {
	spine = make([]SpineItem, 0, len(refs))
	for _, ref := range refs {
		item, ok := manifest[ref.IDRef]
		if !ok {
			dropped = append(dropped, ref.IDRef)
			continue
		}
		spine = append(spine, SpineItem{
			ID:        item.ID,
			Href:      item.Href,
			MediaType: item.MediaType,
			Index:     len(spine),
			Linear:    ref.Linear,
		})
	}
	return spine, dropped
}
