// Package uuid generates unique names for temporary resources
package uuid

import (
	"os"
	"path/filepath"

	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// TempPath returns a path in the temp directory that is
// unique to this call. Nothing is created at the path.
func TempPath(prefix string) string {
	return filepath.Join(os.TempDir(), prefix+"-"+MustUUID())
}
