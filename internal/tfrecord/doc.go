// Package tfrecord writes and reads TFRecord files of tf.train.Example
// protos, the input format of tf.data.TFRecordDataset.
//
// A TFRecord file is a concatenation of records:
//
//	uint64 length          little endian
//	uint32 masked_crc32c(length bytes)
//	byte   data[length]
//	uint32 masked_crc32c(data)
//
// where masked_crc32c(x) = ((c >> 15) | (c << 17)) + 0xa282ead8 for the
// Castagnoli CRC c of x. The whole stream may be GZIP or ZLIB compressed.
//
// Examples are encoded directly on the protobuf wire format:
//
//	message Example   { Features features = 1; }
//	message Features  { map<string, Feature> feature = 1; }
//	message Feature   { oneof kind { BytesList bytes_list = 1; ... } }
//	message BytesList { repeated bytes value = 1; }
//
// Map entries are emitted in row order so the output is deterministic.
package tfrecord
