// Package upload moves finished artifacts to a remote destination after they
// are persisted locally. The ingestion core only sees the Uploader interface;
// upload failures never count against ingestion success.
package upload

// Uploader consumes a local artifact path and an optional destination name.
// An empty name means the artifact's own filename.
type Uploader interface {
	Upload(localPath, name string) error
}
