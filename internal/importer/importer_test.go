package importer

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamkz007/look-sub000/internal/epub"
)

type fakeExtractor struct {
	mu       sync.Mutex
	results  map[string]*epub.Metadata
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (f *fakeExtractor) ExtractMetadata(path string) (*epub.Metadata, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if md, ok := f.results[path]; ok {
		return md, nil
	}
	return nil, epub.ErrInvalidZIPFile
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/books/War_and_Peace.epub", "War and Peace"},
		{"plain.epub", "plain"},
		{"dir/  spaced__name .epub", "spaced name"},
		{"no-extension", "no-extension"},
	}
	for _, tt := range tests {
		if got := TitleFromFilename(tt.path); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRun_FallsBackToFilename(t *testing.T) {
	fake := &fakeExtractor{results: map[string]*epub.Metadata{
		"good.epub":     {Title: "Good Book", Authors: []string{"A. Author"}},
		"untitled.epub": {Authors: []string{"B. Author"}},
	}}
	imp := New(fake)

	records, err := imp.Run(context.Background(), []string{"good.epub", "broken_file.epub", "untitled.epub"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Run() returned %d records, want 3", len(records))
	}

	if records[0].Path != "good.epub" || records[0].Metadata.Title != "Good Book" || records[0].FromFilename {
		t.Errorf("records[0] = %+v", records[0])
	}

	broken := records[1]
	if !broken.FromFilename || broken.Metadata.Title != "broken file" {
		t.Errorf("records[1] = %+v, want a filename title", broken)
	}
	if !errors.Is(broken.Err, epub.ErrInvalidZIPFile) {
		t.Errorf("records[1].Err = %v, want ErrInvalidZIPFile", broken.Err)
	}

	untitled := records[2]
	if untitled.FromFilename || untitled.Metadata.Title != "untitled" || len(untitled.Metadata.Authors) != 1 {
		t.Errorf("records[2] = %+v, want metadata with a filename title", untitled)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	fake := &fakeExtractor{results: map[string]*epub.Metadata{}, delay: 10 * time.Millisecond}
	imp := New(fake, WithWorkers(2))

	paths := []string{"a.epub", "b.epub", "c.epub", "d.epub", "e.epub", "f.epub"}
	records, err := imp.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fake.calls) != len(paths) {
		t.Errorf("extractor called %d times, want %d", len(fake.calls), len(paths))
	}
	if got := fake.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent extractions = %d, want at most 2", got)
	}
	for i, r := range records {
		if r.Path != paths[i] {
			t.Errorf("records[%d].Path = %q, want %q", i, r.Path, paths[i])
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	fake := &fakeExtractor{results: map[string]*epub.Metadata{}}
	imp := New(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := imp.Run(ctx, []string{"a.epub", "b.epub"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("extractor called %d times after cancellation", len(fake.calls))
	}
}

func TestRun_WithEPUBParser(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "Real_Book.epub")
	f, err := os.Create(bookPath)
	if err != nil {
		t.Fatalf("failed to create epub: %v", err)
	}
	w := zip.NewWriter(f)
	for name, data := range map[string]string{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`,
		"content.opf": `<package><metadata><dc:title xmlns:dc="http://purl.org/dc/elements/1.1/">From OPF</dc:title></metadata>` +
			`<manifest/><spine/></package>`,
	} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(data)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close file: %v", err)
	}

	notEPUB := filepath.Join(dir, "Not_A_Book.epub")
	if err := os.WriteFile(notEPUB, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := New(epub.NewParser()).Run(context.Background(), []string{bookPath, notEPUB})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if records[0].Metadata.Title != "From OPF" || records[0].FromFilename {
		t.Errorf("records[0] = %+v, want the OPF title", records[0])
	}
	if records[1].Metadata.Title != "Not A Book" || !records[1].FromFilename {
		t.Errorf("records[1] = %+v, want the filename title", records[1])
	}
}
