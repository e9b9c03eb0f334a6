package visual

import "context"

// ObjectStore is the narrow port the SVG/Image stages need: content-
// addressable upload, returning the storage URL/path the queued payload
// and the eventual Storage-stage DB row both reference. internal/
// objectstore.Bucket (C10), obtained from Client.Bucket, implements this
// against an S3-compatible endpoint; fake implementations back the stage
// tests.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (storageURL string, err error)
}
