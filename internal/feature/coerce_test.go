package feature

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

func TestFromJSON(t *testing.T) {
	t.Run("scalars", func(t *testing.T) {
		tests := []struct {
			raw  string
			want string
		}{
			{`"x"`, "x"},
			{`"café \"q\""`, `café "q"`},
			{`""`, ""},
			{`42`, "42"},
			{`2.50`, "2.50"},
			{`-1e3`, "-1e3"},
			{`true`, "true"},
			{`false`, "false"},
			{"  \"padded\"\t", "padded"},
		}
		for _, tt := range tests {
			t.Run(tt.raw, func(t *testing.T) {
				v, ok, err := FromJSON("f", []byte(tt.raw))
				if err != nil || !ok {
					t.Fatalf("FromJSON(%s) = %v, %v", tt.raw, ok, err)
				}
				if diff := cmp.Diff(BytesList{[]byte(tt.want)}, v); diff != "" {
					t.Errorf("FromJSON(%s) mismatch (-want +got):\n%s", tt.raw, diff)
				}
			})
		}
	})

	t.Run("null is omitted", func(t *testing.T) {
		v, ok, err := FromJSON("f", []byte("null"))
		if err != nil || ok || v != nil {
			t.Errorf("FromJSON(null) = %v, %v, %v", v, ok, err)
		}
	})

	t.Run("nested values", func(t *testing.T) {
		for _, raw := range []string{`[1,2]`, `{"b":1}`, `[]`, ``} {
			_, _, err := FromJSON("a", []byte(raw))
			if !errors.Is(err, cverrors.ErrEncoding) {
				t.Errorf("FromJSON(%s) error = %v, want EncodingError", raw, err)
			}
		}
	})
}

func TestFromJSONFields(t *testing.T) {
	row, err := FromJSONFields([]RawField{
		{Name: "b", Value: []byte(`"y"`)},
		{Name: "skip", Value: []byte(`null`)},
		{Name: "a", Value: []byte(`1`)},
	})
	if err != nil {
		t.Fatalf("FromJSONFields() error = %v", err)
	}
	want := Row{
		{Name: "b", Value: BytesList{[]byte("y")}},
		{Name: "a", Value: BytesList{[]byte("1")}},
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("FromJSONFields() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b", "a"}, row.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if v, ok := row.Get("a"); !ok || v.Kind() != KindBytes {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := row.Get("skip"); ok {
		t.Error("Get(skip) found a null field")
	}

	_, err = FromJSONFields([]RawField{{Name: "a", Value: []byte(`[1,2]`)}})
	if !errors.Is(err, cverrors.ErrEncoding) {
		t.Errorf("FromJSONFields() error = %v, want EncodingError", err)
	}
}

func TestKindString(t *testing.T) {
	if got := KindBytes.String(); got != "bytes" {
		t.Errorf("KindBytes.String() = %q", got)
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Errorf("Kind(99).String() = %q", got)
	}
}
