// Package objstore abstracts the object stores the converter reads from and
// writes to.
//
// A [Store] resolves containers (GCS buckets, local directories) into a
// [Bucket]. A Bucket lists objects by key prefix, checks existence, opens
// readers and creates writers. Writers are all-or-nothing: an object only
// becomes visible when [Writer.Close] succeeds, never after [Writer.Abort],
// and Close refuses to replace an object that appeared in the meantime.
//
// URIs have the form scheme://container/key. [Mux] maps schemes to stores:
//
//	gs://bucket/key     Google Cloud Storage
//	file://dir/key      a directory under a local root
//	mem://bucket/key    in-process, for tests
//
// [MemoryStore] exists for tests of this module and of its callers: the
// command line tools do not register it, since its content would not outlive
// the process.
package objstore
