package epub

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// zipFile describes one entry of a test archive.
type zipFile struct {
	Name   string
	Data   string
	Method uint16
}

// buildZip writes files into an in-memory archive, in order.
func buildZip(t *testing.T, files []zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", f.Name, err)
		}
		if _, err := fw.Write([]byte(f.Data)); err != nil {
			t.Fatalf("failed to write %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// writeEPUB writes an archive of files to dir/name and returns its path.
func writeEPUB(t *testing.T, dir, name string, files []zipFile) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buildZip(t, files), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

// directoryOffset reads the central directory offset of an archive without
// a comment.
func directoryOffset(data []byte) int {
	return int(binary.LittleEndian.Uint32(data[len(data)-6:]))
}

func containerXML(opfPath string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + opfPath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
}

const fixtureOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Test Book</dc:title>
    <dc:creator opf:role="aut">Jane Doe</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="uid">urn:uuid:1234</dc:identifier>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="toc" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-img" href="images/cover.png" media-type="image/png"/>
  </manifest>
  <spine toc="toc">
    <itemref idref="ch1"/>
  </spine>
</package>`

const fixtureNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <docTitle><text>Test Book</text></docTitle>
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="text/ch1.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

const fixtureChapter = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title><link rel="stylesheet" href="../styles/main.css"/></head>
<body><h1>Chapter 1</h1><p>Hello, World!</p><img src="../images/cover.png"/></body>
</html>`

// fixtureCover is a 1x1 PNG.
var fixtureCover = string([]byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
})

// fixtureFiles is the minimal book: container.xml -> OEBPS/content.opf with
// one chapter, an NCX and a cover image.
func fixtureFiles() []zipFile {
	return []zipFile{
		{Name: "mimetype", Data: "application/epub+zip", Method: zip.Store},
		{Name: "META-INF/", Method: zip.Store},
		{Name: "META-INF/container.xml", Data: containerXML("OEBPS/content.opf"), Method: zip.Deflate},
		{Name: "OEBPS/content.opf", Data: fixtureOPF, Method: zip.Deflate},
		{Name: "OEBPS/toc.ncx", Data: fixtureNCX, Method: zip.Deflate},
		{Name: "OEBPS/text/ch1.xhtml", Data: fixtureChapter, Method: zip.Deflate},
		{Name: "OEBPS/images/cover.png", Data: fixtureCover, Method: zip.Store},
	}
}

// replaceFile returns files with the named entry's data replaced.
func replaceFile(files []zipFile, name, data string) []zipFile {
	out := make([]zipFile, 0, len(files))
	for _, f := range files {
		if f.Name == name {
			f.Data = data
		}
		out = append(out, f)
	}
	return out
}

// withoutFile returns files without the named entry.
func withoutFile(files []zipFile, name string) []zipFile {
	out := make([]zipFile, 0, len(files))
	for _, f := range files {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}
