package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"golang.org/x/net/html/charset"
)

// xmlHandler receives the events of a streaming XML parse. Element names
// are local names with any namespace prefix removed.
type xmlHandler interface {
	startElement(name string, attrs []xml.Attr)
	characters(text []byte)
	endElement(name string)
}

// decodeXML streams data through h. The decoder is lenient about HTML
// entities and handles non-UTF-8 encodings. Nothing is auto-closed: OPF
// meta elements carry text in EPUB 3.
func decodeXML(data []byte, h xmlHandler) error {
	d := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &Error{Kind: ErrXMLParsingFailed, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			h.startElement(t.Name.Local, t.Attr)
		case xml.EndElement:
			h.endElement(t.Name.Local)
		case xml.CharData:
			h.characters(t)
		}
	}
}

// attr returns the value of the attribute with the given local name.
func attr(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
