package epub

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Chapter is a spine item's XHTML loaded from an extracted book, ready to be
// handed to a web renderer.
type Chapter struct {
	Item     SpineItem
	Path     string            // on-disk location
	Document *goquery.Document // Parsed HTML document
	CSSLinks []string          // stylesheet hrefs, relative to the OPF directory
	// ImageRefs are image sources, relative to the OPF directory.
	ImageRefs []string
}

// LoadChapter loads the chapter at the given spine index.
func LoadChapter(book *Book, index int) (*Chapter, error) {
	if index < 0 || index >= len(book.Spine) {
		return nil, newError(ErrMissingContent, fmt.Sprintf("chapter index %d out of range", index))
	}
	item := book.Spine[index]
	file := book.ResolvedPath(archivePath("", item.Href))

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, pathError(ErrMissingContent, item.Href, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: ErrXMLParsingFailed, Path: item.Href, Err: err}
	}

	c := &Chapter{
		Item:      item,
		Path:      file,
		Document:  doc,
		CSSLinks:  []string{},
		ImageRefs: []string{},
	}

	// Get base directory for resolving relative paths
	baseDir := path.Dir(item.Href)

	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			c.CSSLinks = append(c.CSSLinks, resolvePath(baseDir, href))
		}
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, src))
		}
	})
	doc.Find("image").Each(func(i int, s *goquery.Selection) {
		for _, name := range []string{"xlink:href", "href"} {
			if src, exists := s.Attr(name); exists {
				c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, src))
				return
			}
		}
	})

	return c, nil
}

// Render returns the chapter HTML with style injected at the end of <head>
// and script at the end of <body>. Empty arguments inject nothing.
func (c *Chapter) Render(style, script string) (string, error) {
	src, err := goquery.OuterHtml(c.Document.Selection)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(style) != "" {
		doc.Find("head").AppendHtml("<style>" + style + "</style>")
	}
	if strings.TrimSpace(script) != "" {
		doc.Find("body").AppendHtml("<script>" + script + "</script>")
	}

	return goquery.OuterHtml(doc.Selection)
}

// resolvePath resolves a relative path against a base directory
// baseDir: base directory (e.g., "text" for "text/chapter1.xhtml")
// relPath: relative path (e.g., "../images/photo.jpg")
// returns: resolved path (e.g., "images/photo.jpg")
func resolvePath(baseDir, relPath string) string {
	return path.Clean(path.Join(baseDir, hrefWithoutFragment(relPath)))
}
