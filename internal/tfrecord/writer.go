package tfrecord

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/maruel/jsonl2tfrecord/internal/feature"
)

const (
	headerSize = 12
	footerSize = 4
	maskDelta  = 0xa282ead8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + maskDelta
}

// appendFrame appends the framed record holding data to b.
func appendFrame(b []byte, data []byte) []byte {
	start := len(b)
	b = binary.LittleEndian.AppendUint64(b, uint64(len(data)))
	b = binary.LittleEndian.AppendUint32(b, maskedCRC(b[start:start+8]))
	b = append(b, data...)
	return binary.LittleEndian.AppendUint32(b, maskedCRC(data))
}

// Writer appends framed records to an io.Writer.
//
// Writer is not safe for concurrent use.
type Writer struct {
	dst  io.Writer
	comp io.WriteCloser // nil when uncompressed
	// frame is a reusable buffer for formatting records
	frame []byte
	// example is a reusable buffer for serializing Examples
	example []byte
	records int
	bytes   int64
	closed  bool
}

// NewWriter returns a Writer on w. Close must be called to flush compressed
// streams; it does not close w.
func NewWriter(w io.Writer, c Compression) *Writer {
	tw := &Writer{dst: w}
	switch c {
	case CompressionGzip:
		tw.comp = gzip.NewWriter(w)
	case CompressionZlib:
		tw.comp = zlib.NewWriter(w)
	}
	if tw.comp != nil {
		tw.dst = tw.comp
	}
	return tw
}

// WriteRecord writes one record whose payload is data.
//
// WriteRecord does not retain data.
func (w *Writer) WriteRecord(data []byte) error {
	if w.closed {
		panic("tfrecord: writer closed")
	}
	w.frame = appendFrame(w.frame[:0], data)
	if _, err := w.dst.Write(w.frame); err != nil {
		return err
	}
	w.records++
	w.bytes += int64(len(w.frame))
	return nil
}

// WriteExample serializes row as a tf.train.Example and writes it as one
// record.
func (w *Writer) WriteExample(row feature.Row) error {
	w.example = AppendExample(w.example[:0], row)
	return w.WriteRecord(w.example)
}

// Records returns the number of records written.
func (w *Writer) Records() int {
	return w.records
}

// Bytes returns the number of framed bytes written, before compression.
func (w *Writer) Bytes() int64 {
	return w.bytes
}

// Close flushes the compression stream, if any.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.comp != nil {
		return w.comp.Close()
	}
	return nil
}
