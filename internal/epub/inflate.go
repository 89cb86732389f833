package epub

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
)

// inflateHeadroom scales the compressed size into an output bound for
// archives that under-declare their uncompressed size.
const inflateHeadroom = 4

// maxInflatePrealloc caps the buffer reserved from the declared size, which
// comes from the archive and is not trusted.
const maxInflatePrealloc = 64 << 20

// inflate decodes a raw DEFLATE stream. expectedSize is a hint: output is
// capped at max(expectedSize, 4*len(compressed)) and a stream that yields
// nothing is an error.
func inflate(compressed []byte, expectedSize uint32) ([]byte, error) {
	if expectedSize == 0 {
		return []byte{}, nil
	}

	limit := int64(expectedSize)
	if headroom := int64(len(compressed)) * inflateHeadroom; headroom > limit {
		limit = headroom
	}

	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()

	out := bytes.NewBuffer(make([]byte, 0, min(int64(expectedSize), maxInflatePrealloc)))
	n, err := io.Copy(out, io.LimitReader(fr, limit))
	if n <= 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, &Error{Kind: ErrDecompressionFailed, Detail: "inflate produced no output", Err: err}
	}
	return out.Bytes(), nil
}

// withPath fills in the entry path of an *Error that was raised without one.
func withPath(err error, p string) error {
	var e *Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = p
	}
	return err
}
