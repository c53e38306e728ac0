package feature

import (
	"bytes"
	"slices"

	"github.com/goccy/go-json"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

// JSON scalars are coerced to their text form and stored as a single-element
// BytesList:
//
//	"text"      → text (unquoted, UTF-8)
//	123, 2.50   → the number literal exactly as written
//	true/false  → "true"/"false"
//	null        → field omitted
//	[...] {...} → ENCODING_ERROR

// FromJSON converts the raw JSON value of field name into a Value. ok is false
// for null, which callers drop from the row.
func FromJSON(name string, raw []byte) (v Value, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, cverrors.Encoding(name, "empty value")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false, cverrors.Encoding(name, "invalid string").Wrap(err)
		}
		return BytesList{[]byte(s)}, true, nil
	case 'n':
		return nil, false, nil
	case '[':
		return nil, false, cverrors.Encoding(name, "nested array cannot be encoded as a bytes feature")
	case '{':
		return nil, false, cverrors.Encoding(name, "nested object cannot be encoded as a bytes feature")
	default:
		// Numbers and booleans keep their literal text.
		return BytesList{slices.Clone(raw)}, true, nil
	}
}

// RawField is a field name with its undecoded JSON value.
type RawField struct {
	Name  string
	Value []byte
}

// FromJSONFields builds a Row from decoded JSON object members, in order.
func FromJSONFields(fields []RawField) (Row, error) {
	row := make(Row, 0, len(fields))
	for _, f := range fields {
		v, ok, err := FromJSON(f.Name, f.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			row = append(row, Field{Name: f.Name, Value: v})
		}
	}
	return row, nil
}
