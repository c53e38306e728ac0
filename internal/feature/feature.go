// Package feature models rows as ordered lists of named feature values.
//
// A [Value] is a closed sum type: only types in this package implement it.
// Today the only kind is [BytesList]. Code that switches on [Kind] must handle
// every kind and panic on unknown ones, so adding Int64List or FloatList is a
// change that every consumer sees.
package feature

import (
	"fmt"
)

// Kind enumerates the supported feature value kinds.
type Kind int

const (
	// KindBytes is a list of byte strings.
	KindBytes Kind = iota + 1
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a feature value.
type Value interface {
	Kind() Kind
	// sealed restricts implementations to this package.
	sealed()
}

// BytesList is a list of byte strings.
type BytesList [][]byte

// Kind implements Value.
func (BytesList) Kind() Kind { return KindBytes }

func (BytesList) sealed() {}

// Field is one named value of a Row.
type Field struct {
	Name  string
	Value Value
}

// Row is an ordered list of fields, in source order.
type Row []Field

// Get returns the value of the first field named name.
func (r Row) Get(name string) (Value, bool) {
	for i := range r {
		if r[i].Name == name {
			return r[i].Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i := range r {
		names[i] = r[i].Name
	}
	return names
}
