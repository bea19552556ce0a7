// Package testutil provides small test helpers shared across packages.
package testutil

import (
	"os"
	"testing"
)

// TempDir creates a temporary directory for a test's tree/value files and
// registers it for removal at test cleanup.
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "ticket-storage-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
