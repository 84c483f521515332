// Package blob stores room avatars. Uploads are best-effort from the chat
// service's point of view: a failed or timed-out upload is logged and the room
// is created without an avatar.
package blob

import (
	"context"
	"io"
)

// Uploader stores a file and returns the URL it will be served under.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader, size int64) (string, error)
}
