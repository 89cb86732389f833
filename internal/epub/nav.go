package epub

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedNavTypes are nav documents sections that do not describe chapters.
var skippedNavTypes = map[string]bool{
	"landmarks": true,
	"page-list": true,
}

// navParser collects anchor titles from an XHTML navigation document.
type navParser struct {
	titles titleMap
	base   string

	// navStack records, for each open nav element, whether it is skipped.
	navStack []bool
	href     string
	inAnchor bool
	text     strings.Builder
}

func (p *navParser) skipping() bool {
	for _, skip := range p.navStack {
		if skip {
			return true
		}
	}
	return false
}

func (p *navParser) startTag(tok html.Token) {
	switch tok.DataAtom {
	case atom.Nav:
		p.navStack = append(p.navStack, skippedNavTypes[navType(tok.Attr)])
	case atom.A:
		if p.skipping() {
			return
		}
		for _, a := range tok.Attr {
			if a.Key == "href" {
				p.href = a.Val
				p.inAnchor = true
				p.text.Reset()
			}
		}
	}
}

func (p *navParser) endTag(tok html.Token) {
	switch tok.DataAtom {
	case atom.Nav:
		if len(p.navStack) > 0 {
			p.navStack = p.navStack[:len(p.navStack)-1]
		}
	case atom.A:
		if p.inAnchor {
			p.titles.add(p.base, p.href, strings.Join(strings.Fields(p.text.String()), " "))
			p.inAnchor = false
		}
	}
}

// navType returns the epub:type attribute of a nav element.
func navType(attrs []html.Attribute) string {
	for _, a := range attrs {
		if a.Key == "epub:type" || (a.Namespace == "epub" && a.Key == "type") || a.Key == "type" {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// parseNav parses an XHTML navigation document.
func parseNav(data []byte, base string) (titleMap, error) {
	p := &navParser{titles: titleMap{}, base: base}
	z := html.NewTokenizer(bytes.NewReader(stripBOM(data)))

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, &Error{Kind: ErrXMLParsingFailed, Err: err}
			}
			return p.titles, nil
		case html.StartTagToken:
			p.startTag(z.Token())
		case html.SelfClosingTagToken:
			// <nav/> and <a/> carry no titles.
		case html.EndTagToken:
			p.endTag(z.Token())
		case html.TextToken:
			if p.inAnchor {
				p.text.Write(z.Text())
			}
		}
	}
}
