package epub

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"path"
	"strings"
)

// ncxParser maps navPoint content sources to their labels.
//
// An entry is recorded as soon as a navPoint has both its label and its
// content source, whichever comes last. Both normally precede nested
// navPoints, so a parent claims its file before its children.
type ncxParser struct {
	titles titleMap
	base   string

	// points holds the state of each open navPoint.
	points  []navPoint
	inLabel bool
	inText  bool
	text    strings.Builder
}

type navPoint struct {
	label    string
	src      string
	hasSrc   bool
	recorded bool
}

func (p *ncxParser) startElement(name string, attrs []xml.Attr) {
	switch name {
	case "navPoint":
		p.points = append(p.points, navPoint{})
	case "navLabel":
		p.inLabel = len(p.points) > 0
	case "text":
		if p.inLabel {
			p.inText = true
			p.text.Reset()
		}
	case "content":
		if len(p.points) == 0 {
			return
		}
		pt := &p.points[len(p.points)-1]
		if !pt.hasSrc {
			pt.src, pt.hasSrc = attr(attrs, "src"), true
		}
		p.record(pt)
	}
}

func (p *ncxParser) characters(text []byte) {
	if p.inText {
		p.text.Write(text)
	}
}

func (p *ncxParser) endElement(name string) {
	switch name {
	case "text":
		if p.inText && len(p.points) > 0 {
			pt := &p.points[len(p.points)-1]
			pt.label = strings.Join(strings.Fields(p.text.String()), " ")
			p.inText = false
			p.record(pt)
		}
	case "navLabel":
		p.inLabel = false
	case "navPoint":
		if len(p.points) > 0 {
			p.points = p.points[:len(p.points)-1]
		}
	}
}

func (p *ncxParser) record(pt *navPoint) {
	if pt.recorded || !pt.hasSrc || pt.label == "" {
		return
	}
	pt.recorded = true
	p.titles.add(p.base, pt.src, pt.label)
}

// titleMap maps a fragment-free href, relative to the package document
// directory, to a chapter title. The first title seen for an href wins.
type titleMap map[string]string

// add records title for href, which is relative to base.
func (m titleMap) add(base, href, title string) {
	key := tocKey(base, href)
	if key == "" || title == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = title
	}
}

// tocKey strips the fragment of href, unescapes it and resolves it against
// base. Fragment-only references yield "".
func tocKey(base, href string) string {
	href = hrefWithoutFragment(strings.TrimSpace(href))
	if href == "" {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return path.Clean(path.Join(base, href))
}

// parseNCX parses a legacy navigation control document. base is the
// directory of the document relative to the package document directory.
func parseNCX(data []byte, base string) (titleMap, error) {
	p := &ncxParser{titles: titleMap{}, base: base}
	err := decodeXML(data, p)
	if err != nil && len(p.titles) == 0 {
		return nil, err
	}
	return p.titles, nil
}

// parseTOC dispatches on the document shape: an ncx root element is a
// navigation control document, anything else is treated as XHTML.
func parseTOC(data []byte, base string) (titleMap, error) {
	if isNCX(data) {
		return parseNCX(data, base)
	}
	return parseNav(data, base)
}

func isNCX(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.Contains(head, []byte("<ncx")) || bytes.Contains(head, []byte(":ncx")) || bytes.Contains(data, []byte("<navMap"))
}

// hrefWithoutFragment returns the href with the fragment (#...) removed.
func hrefWithoutFragment(href string) string {
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		return href[:idx]
	}
	return href
}
