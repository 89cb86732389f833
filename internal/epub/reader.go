package epub

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	directoryEndLen    = 22
	directoryHeaderLen = 46
	fileHeaderLen      = 30

	directoryEndSignature    = 0x06054b50
	directoryHeaderSignature = 0x02014b50
	fileHeaderSignature      = 0x04034b50

	maxCommentLen = 65535
	maxEntryCount = 10000
)

// Compression methods.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
)

// Entry describes one file in the central directory.
type Entry struct {
	Name             string
	CompressedSize   uint32
	UncompressedSize uint32
	Method           uint16
	HeaderOffset     uint32
}

// IsDir reports whether the entry is an explicit directory marker.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Archive is a ZIP archive held entirely in memory.
type Archive struct {
	data    cursor
	entries []Entry

	// eocdOffset is the position of the end of central directory record.
	eocdOffset int
	// eocdConfirmed is false when the comment length did not account for
	// the trailing bytes and the record was accepted on a best-effort basis.
	eocdConfirmed bool
}

// OpenArchive reads the whole file at path and parses it as a ZIP archive.
func OpenArchive(filename string) (*Archive, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, pathError(ErrInvalidZIPFile, filename, err)
	}
	return NewArchive(data)
}

// NewArchive parses the central directory of an in-memory ZIP archive.
func NewArchive(data []byte) (*Archive, error) {
	if len(data) < directoryEndLen {
		return nil, newError(ErrInvalidZIPFile, fmt.Sprintf("%d bytes is shorter than the end of central directory record", len(data)))
	}
	if data[0] != 'P' || data[1] != 'K' {
		return nil, newError(ErrInvalidZIPFile, "missing PK signature")
	}

	a := &Archive{data: cursor(data)}

	off, confirmed, ok := findDirectoryEnd(a.data)
	if !ok {
		return nil, newError(ErrInvalidEPUBStructure, "end of central directory not found")
	}
	a.eocdOffset = off
	a.eocdConfirmed = confirmed

	if err := a.readDirectory(); err != nil {
		return nil, err
	}
	return a, nil
}

// findDirectoryEnd scans backward for the end of central directory
// signature. The first signature found is used even when its comment length
// is inconsistent with the archive size.
func findDirectoryEnd(data cursor) (offset int, confirmed bool, ok bool) {
	start := len(data) - directoryEndLen
	stop := len(data) - maxCommentLen - directoryEndLen
	if stop < 0 {
		stop = 0
	}

	for i := start; i >= stop; i-- {
		sig, _ := data.uint32At(i)
		if sig != directoryEndSignature {
			continue
		}
		commentLen, _ := data.uint16At(i + 20)
		return i, i+directoryEndLen+int(commentLen) == len(data), true
	}
	return 0, false, false
}

// readDirectory parses central directory headers until the declared count
// is reached or a header cannot be read. Entries parsed before a bad header
// are kept.
func (a *Archive) readDirectory() error {
	count, _ := a.data.uint16At(a.eocdOffset + 10)
	dirOffset, _ := a.data.uint32At(a.eocdOffset + 16)

	if count >= maxEntryCount {
		return newError(ErrInvalidZIPFile, fmt.Sprintf("implausible entry count %d", count))
	}

	a.entries = make([]Entry, 0, count)
	off := int(dirOffset)
	for i := 0; i < int(count); i++ {
		entry, next, ok := a.readDirectoryHeader(off)
		if !ok {
			break
		}
		a.entries = append(a.entries, entry)
		off = next
	}
	return nil
}

func (a *Archive) readDirectoryHeader(off int) (Entry, int, bool) {
	if _, ok := a.data.bytesAt(off, directoryHeaderLen); !ok {
		return Entry{}, 0, false
	}
	if sig, _ := a.data.uint32At(off); sig != directoryHeaderSignature {
		return Entry{}, 0, false
	}

	method, _ := a.data.uint16At(off + 10)
	compressed, _ := a.data.uint32At(off + 20)
	uncompressed, _ := a.data.uint32At(off + 24)
	nameLen, _ := a.data.uint16At(off + 28)
	extraLen, _ := a.data.uint16At(off + 30)
	commentLen, _ := a.data.uint16At(off + 32)
	headerOffset, _ := a.data.uint32At(off + 42)

	name, ok := a.data.bytesAt(off+directoryHeaderLen, int(nameLen))
	if !ok {
		return Entry{}, 0, false
	}

	entry := Entry{
		Name:             string(name),
		CompressedSize:   compressed,
		UncompressedSize: uncompressed,
		Method:           method,
		HeaderOffset:     headerOffset,
	}
	next := off + directoryHeaderLen + int(nameLen) + int(extraLen) + int(commentLen)
	return entry, next, true
}

// Entries returns the central directory entries in archive order.
func (a *Archive) Entries() []Entry {
	return a.entries
}

// Lookup finds an entry by name, first by exact match and then
// case-insensitively.
func (a *Archive) Lookup(name string) (Entry, bool) {
	name = normalizePath(name)
	for _, e := range a.entries {
		if e.Name == name {
			return e, true
		}
	}
	for _, e := range a.entries {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadFile extracts the named entry into memory.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	entry, ok := a.Lookup(name)
	if !ok {
		return nil, pathError(ErrMissingContent, name, nil)
	}
	return a.Extract(entry)
}

// Extract returns the uncompressed contents of entry. The local file header
// is read again because its name and extra lengths may differ from the
// central directory copy.
func (a *Archive) Extract(entry Entry) ([]byte, error) {
	off := int(entry.HeaderOffset)
	if _, ok := a.data.bytesAt(off, fileHeaderLen); !ok {
		return nil, &Error{Kind: ErrCorruptEntry, Path: entry.Name, Detail: "local header out of bounds"}
	}
	if sig, _ := a.data.uint32At(off); sig != fileHeaderSignature {
		return nil, &Error{Kind: ErrCorruptEntry, Path: entry.Name, Detail: "bad local header signature"}
	}
	nameLen, _ := a.data.uint16At(off + 26)
	extraLen, _ := a.data.uint16At(off + 28)

	start := off + fileHeaderLen + int(nameLen) + int(extraLen)
	payload, ok := a.data.bytesAt(start, int(entry.CompressedSize))
	if !ok {
		return nil, &Error{Kind: ErrCorruptEntry, Path: entry.Name, Detail: "payload out of bounds"}
	}

	switch entry.Method {
	case Store:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case Deflate:
		out, err := inflate(payload, entry.UncompressedSize)
		if err != nil {
			return nil, withPath(err, entry.Name)
		}
		return out, nil
	default:
		return nil, &Error{Kind: ErrDecompressionFailed, Path: entry.Name, Detail: fmt.Sprintf("unsupported compression method %d", entry.Method)}
	}
}

// ExtractAll writes every entry below dest, creating directories as needed.
func (a *Archive) ExtractAll(dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return pathError(ErrExtractionFailed, dest, err)
	}

	for _, entry := range a.entries {
		target, err := extractionTarget(dest, entry.Name)
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return pathError(ErrExtractionFailed, entry.Name, err)
			}
			continue
		}

		data, err := a.Extract(entry)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return pathError(ErrExtractionFailed, entry.Name, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return pathError(ErrExtractionFailed, entry.Name, err)
		}
	}
	return nil
}

// extractionTarget maps an entry name to a path under dest, refusing names
// that would escape it.
func extractionTarget(dest, name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if !isSafePath(slashed) {
		return "", &Error{Kind: ErrExtractionFailed, Path: name, Detail: "entry escapes destination"}
	}
	rel := path.Clean(slashed)
	if rel == "." {
		return dest, nil
	}
	return filepath.Join(dest, filepath.FromSlash(rel)), nil
}

// isSafePath reports whether p stays inside the archive root.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// normalizePath removes leading "./" and "/" from archive paths.
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimLeft(p, "/")
}
