package objstore

import (
	"strings"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

// DefaultScheme is assumed for URIs without an explicit scheme.
const DefaultScheme = "gs"

// SplitURI splits scheme://container/key into its parts.
//
// The key may be empty ("gs://bucket/") but the separator after the container
// may not be omitted.
func SplitURI(uri string) (scheme, container, key string, err error) {
	scheme = DefaultScheme
	rest := uri
	if s, r, ok := strings.Cut(uri, "://"); ok {
		scheme, rest = s, r
	}
	container, key, ok := strings.Cut(rest, "/")
	if !ok || container == "" || scheme == "" {
		return "", "", "", cverrors.MalformedPath(uri)
	}
	return scheme, container, key, nil
}

// JoinURI is the inverse of SplitURI.
func JoinURI(scheme, container, key string) string {
	return scheme + "://" + container + "/" + key
}

// Base returns the last slash-separated element of key.
func Base(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
