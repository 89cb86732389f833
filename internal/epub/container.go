package epub

import (
	"encoding/xml"
	"strings"
)

// containerPath is the well-known location of container.xml.
const containerPath = "META-INF/container.xml"

// containerParser records the full-path of the first rootfile element.
type containerParser struct {
	fullPath string
	found    bool
}

func (p *containerParser) startElement(name string, attrs []xml.Attr) {
	if p.found || name != "rootfile" {
		return
	}
	p.fullPath = strings.TrimSpace(attr(attrs, "full-path"))
	p.found = true
}

func (p *containerParser) characters([]byte) {}

func (p *containerParser) endElement(string) {}

// parseContainer returns the package document path declared in
// container.xml.
func parseContainer(data []byte) (string, error) {
	p := &containerParser{}
	err := decodeXML(data, p)
	if p.found && p.fullPath != "" {
		return normalizePath(p.fullPath), nil
	}
	if err != nil {
		return "", err
	}
	return "", newError(ErrInvalidEPUBStructure, "container.xml declares no rootfile")
}
