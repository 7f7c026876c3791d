// Package cache implements the fetch and cache manager: it resolves a
// requested (source, version, region) artifact to a local file, fetching
// from the source's endpoint on cache miss, verifying integrity, and
// installing the result atomically.
//
// Layout on disk, under the configured cache root:
//
//	<root>/<source>/<version>/<region>/artifact.<ext>
//	<root>/<source>/<version>/<region>/artifact.meta.json
//	<root>/<source>/<version>/<region>/.lock
//
// The sidecar metadata file records the digest, size, fetch timestamp and
// concrete URL of the installed artifact. The .lock file carries the flock
// that serializes fetches for one key across processes; within a process,
// singleflight collapses concurrent requests for the same key so at most one
// goroutine ever contends on the flock.
//
// A failed fetch or a checksum mismatch never replaces a previously
// installed artifact: downloads land in a temporary file that is renamed
// into place only after verification.
package cache
