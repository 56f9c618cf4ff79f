// Package release holds the staleness-gated refresh cache at the heart of
// release-hub. A Cache owns the last normalized Snapshot of the repository's
// latest eligible release together with the time it was last confirmed
// against the upstream API. Reads go through Cache.Snapshot, which refreshes
// synchronously when the data is older than the configured interval.
//
// Concurrent stale reads are collapsed into a single upstream refresh; every
// caller waits for that refresh and then reads the same result. Snapshots are
// assembled off to the side and swapped in under a lock, so readers observe
// either the previous release or the new one, never a partial build.
package release
