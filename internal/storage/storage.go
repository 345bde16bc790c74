package storage

import "context"

// ObjectStore is the durable asset storage the result publisher writes to
// and the purge path deletes from.
type ObjectStore interface {
	// Put uploads an object and returns its public URL. Re-uploading the
	// same key overwrites, which keeps retry-of-publish idempotent.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Bucket returns the bucket objects are stored in.
	Bucket() string
}
