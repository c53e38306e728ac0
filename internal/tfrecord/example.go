package tfrecord

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maruel/jsonl2tfrecord/internal/feature"
)

// Field numbers from tensorflow/core/example/{example,feature}.proto.
const (
	exampleFeatures  protowire.Number = 1
	featuresFeature  protowire.Number = 1
	mapEntryKey      protowire.Number = 1
	mapEntryValue    protowire.Number = 2
	featureBytesList protowire.Number = 1
	featureFloatList protowire.Number = 2
	featureInt64List protowire.Number = 3
	bytesListValue   protowire.Number = 1
)

// AppendExample appends the serialized tf.train.Example of row to b.
func AppendExample(b []byte, row feature.Row) []byte {
	b = protowire.AppendTag(b, exampleFeatures, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(featuresSize(row)))
	for i := range row {
		f := &row[i]
		b = protowire.AppendTag(b, featuresFeature, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(entrySize(f)))
		b = protowire.AppendTag(b, mapEntryKey, protowire.BytesType)
		b = protowire.AppendString(b, f.Name)
		b = protowire.AppendTag(b, mapEntryValue, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(featureSize(f.Value)))
		b = appendFeature(b, f.Value)
	}
	return b
}

// ExampleSize returns the serialized size of row's Example.
func ExampleSize(row feature.Row) int {
	return protowire.SizeTag(exampleFeatures) + protowire.SizeBytes(featuresSize(row))
}

func featuresSize(row feature.Row) int {
	n := 0
	for i := range row {
		n += protowire.SizeTag(featuresFeature) + protowire.SizeBytes(entrySize(&row[i]))
	}
	return n
}

func entrySize(f *feature.Field) int {
	return protowire.SizeTag(mapEntryKey) + protowire.SizeBytes(len(f.Name)) +
		protowire.SizeTag(mapEntryValue) + protowire.SizeBytes(featureSize(f.Value))
}

func featureSize(v feature.Value) int {
	switch v := v.(type) {
	case feature.BytesList:
		return protowire.SizeTag(featureBytesList) + protowire.SizeBytes(bytesListSize(v))
	default:
		panic(fmt.Sprintf("unsupported feature kind %s", v.Kind()))
	}
}

func appendFeature(b []byte, v feature.Value) []byte {
	switch v := v.(type) {
	case feature.BytesList:
		b = protowire.AppendTag(b, featureBytesList, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(bytesListSize(v)))
		for _, x := range v {
			b = protowire.AppendTag(b, bytesListValue, protowire.BytesType)
			b = protowire.AppendBytes(b, x)
		}
		return b
	default:
		panic(fmt.Sprintf("unsupported feature kind %s", v.Kind()))
	}
}

func bytesListSize(v feature.BytesList) int {
	n := 0
	for _, x := range v {
		n += protowire.SizeTag(bytesListValue) + protowire.SizeBytes(len(x))
	}
	return n
}

// ErrUnsupportedFeature is returned by ParseExample for float and int64
// lists, which this package never writes.
var ErrUnsupportedFeature = errors.New("unsupported feature kind")

// ParseExample decodes a serialized tf.train.Example. Unknown fields are
// skipped. Byte slices in the result alias data.
func ParseExample(data []byte) (feature.Row, error) {
	var row feature.Row
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != exampleFeatures || typ != protowire.BytesType {
			return nil
		}
		return eachField(v, func(num protowire.Number, typ protowire.Type, v []byte) error {
			if num != featuresFeature || typ != protowire.BytesType {
				return nil
			}
			f, err := parseEntry(v)
			if err != nil {
				return err
			}
			row = append(row, f)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("invalid Example: %w", err)
	}
	return row, nil
}

func parseEntry(data []byte) (feature.Field, error) {
	var f feature.Field
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case mapEntryKey:
			f.Name = string(v)
		case mapEntryValue:
			val, err := parseFeature(v)
			if err != nil {
				return fmt.Errorf("feature %q: %w", f.Name, err)
			}
			f.Value = val
		}
		return nil
	})
	if err != nil {
		return f, err
	}
	if f.Value == nil {
		// A map entry without a value holds the default Feature: an empty list.
		f.Value = feature.BytesList{}
	}
	return f, nil
}

func parseFeature(data []byte) (feature.Value, error) {
	var val feature.Value
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case featureBytesList:
			list := feature.BytesList{}
			err := eachField(v, func(num protowire.Number, typ protowire.Type, x []byte) error {
				if num == bytesListValue && typ == protowire.BytesType {
					list = append(list, x)
				}
				return nil
			})
			val = list
			return err
		case featureFloatList, featureInt64List:
			return ErrUnsupportedFeature
		}
		return nil
	})
	if val == nil && err == nil {
		val = feature.BytesList{}
	}
	return val, err
}

// eachField calls fn for every field of a serialized message. v is the
// payload of length-delimited fields and nil otherwise.
func eachField(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		var v []byte
		if typ == protowire.BytesType {
			v, n = protowire.ConsumeBytes(data)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}
