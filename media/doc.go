// Package media is the blog image client for an S3-compatible object
// store. Uploads return both a public URL for rendering and the object
// key the blog row keeps for deletion.
//
// # What this package must NOT do
//
//   - Validate or resize images (httpd enforces size/type limits).
//   - Persist anything outside the bucket.
package media
