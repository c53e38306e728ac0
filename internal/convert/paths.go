package convert

import (
	"strings"

	"github.com/maruel/jsonl2tfrecord/internal/jsonl"
	"github.com/maruel/jsonl2tfrecord/internal/objstore"
)

// OutputName returns the output file name for an input key: the base name
// with inputSuffix replaced by outputSuffix. A trailing compression suffix
// (.gz, .zst) is dropped first. ok is false when the key does not carry
// inputSuffix.
func OutputName(key, inputSuffix, outputSuffix string) (name string, ok bool) {
	base := jsonl.TrimCompression(objstore.Base(key))
	if !strings.HasSuffix(base, inputSuffix) {
		return "", false
	}
	return strings.TrimSuffix(base, inputSuffix) + outputSuffix, true
}

// JoinPrefix places name under prefix, which may or may not end with a slash.
func JoinPrefix(prefix, name string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix + name
	}
	return prefix + "/" + name
}

// OutputURI derives the output URI of an input key under outputPrefix.
func OutputURI(key, outputPrefix, inputSuffix, outputSuffix string) (string, bool) {
	name, ok := OutputName(key, inputSuffix, outputSuffix)
	if !ok {
		return "", false
	}
	return JoinPrefix(outputPrefix, name), true
}
