// Package access holds the folder access credential shim. Platforms that
// sandbox filesystem access hand out opaque bookmarks for user-selected
// folders; the scanner stores them on the folder row and passes them back
// here, never interpreting their bytes.
package access

import "context"

// Release ends access granted by Acquire.
type Release func()

// Provider creates and resolves folder bookmarks.
type Provider interface {
	// Bookmark returns the credential to persist for a newly added folder.
	Bookmark(ctx context.Context, path string) ([]byte, error)
	// Acquire grants access to path for the duration of a scan.
	Acquire(ctx context.Context, path string, bookmark []byte) (Release, error)
}

// Noop is the provider for platforms without sandboxed folder access.
type Noop struct{}

// Bookmark returns no credential.
func (Noop) Bookmark(context.Context, string) ([]byte, error) {
	return nil, nil
}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string, []byte) (Release, error) {
	return func() {}, nil
}
