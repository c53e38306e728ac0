package tfrecord

import (
	"fmt"
	"strings"
)

// Compression is the whole-file compression of a TFRecord file.
type Compression uint8

const (
	// CompressionNone writes plain records.
	CompressionNone Compression = 0
	// CompressionGzip matches TFRecordOptions(compression_type="GZIP").
	CompressionGzip Compression = 1
	// CompressionZlib matches TFRecordOptions(compression_type="ZLIB").
	CompressionZlib Compression = 2
)

// String returns the name accepted by ParseCompression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name, case-insensitively. The empty
// string means none.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zlib":
		return CompressionZlib, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}
