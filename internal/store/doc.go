// Package store persists batch runs between invocations.
//
// A Record bundles the immutable request with the state returned by the last
// successful step. Records are written atomically, either as files in a local
// directory or as objects in a gocloud.dev bucket, optionally compressed with
// zstd. Records that are not touched within their TTL are considered
// abandoned and are removed by CleanupExpired.
package store
