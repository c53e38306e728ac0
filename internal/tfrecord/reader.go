package tfrecord

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// ErrCorrupt is returned when a record checksum does not match.
var ErrCorrupt = errors.New("tfrecord: corrupted record")

// maxRecordSize guards against allocating garbage lengths.
const maxRecordSize = 1 << 31

// Reader reads framed records.
type Reader struct {
	src    *bufio.Reader
	comp   io.Closer // nil when uncompressed
	hdr    [headerSize]byte
	buf    []byte
	offset int64
}

// NewReader returns a Reader on r, which must use compression c.
func NewReader(r io.Reader, c Compression) (*Reader, error) {
	tr := &Reader{}
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		tr.comp, r = zr, zr
	case CompressionZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zlib stream: %w", err)
		}
		tr.comp, r = zr, zr
	}
	tr.src = bufio.NewReader(r)
	return tr, nil
}

// Next returns the next record payload. The slice is only valid until the
// next call. It returns io.EOF after the last complete record and
// io.ErrUnexpectedEOF if the input ends inside a record.
func (r *Reader) Next() ([]byte, error) {
	if _, err := io.ReadFull(r.src, r.hdr[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(r.hdr[8:]) != maskedCRC(r.hdr[:8]) {
		return nil, fmt.Errorf("%w: length checksum at offset %d", ErrCorrupt, r.offset)
	}
	n := binary.LittleEndian.Uint64(r.hdr[:8])
	if n > maxRecordSize {
		return nil, fmt.Errorf("%w: record of %d bytes at offset %d", ErrCorrupt, n, r.offset)
	}
	if uint64(cap(r.buf)) < n+footerSize {
		r.buf = make([]byte, n+footerSize)
	}
	r.buf = r.buf[:n+footerSize]
	if _, err := io.ReadFull(r.src, r.buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	data := r.buf[:n]
	if binary.LittleEndian.Uint32(r.buf[n:]) != maskedCRC(data) {
		return nil, fmt.Errorf("%w: data checksum at offset %d", ErrCorrupt, r.offset)
	}
	r.offset += headerSize + int64(n) + footerSize
	return data, nil
}

// Records yields every record payload until EOF. Payload slices are reused
// between iterations.
func (r *Reader) Records() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			data, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(data, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the decompressor, if any. It does not close the underlying
// reader.
func (r *Reader) Close() error {
	if r.comp != nil {
		return r.comp.Close()
	}
	return nil
}
