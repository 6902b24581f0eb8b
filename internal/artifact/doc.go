// Package artifact stores and retrieves the bytes behind file records.
//
// Two backends exist: a local archive directory (shared filesystem) and an
// S3-compatible bucket reached through minio-go. Content is addressed with
// sha2-256 multihashes so extracted copies can be verified against the
// metadata store.
package artifact
