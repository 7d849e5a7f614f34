package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDir creates a temporary directory for testing
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "flashdb-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempImage returns a path for a flash image inside a fresh temp directory
func TempImage(t *testing.T) string {
	return filepath.Join(TempDir(t), "flash.img")
}
