package flash

import (
	"errors"
	"os"
	"testing"

	"github.com/intellect4all/flashdb/common"
	"github.com/intellect4all/flashdb/common/testutil"
)

// TestFileDeviceCreate tests a new image is sized and erased
func TestFileDeviceCreate(t *testing.T) {
	path := testutil.TempImage(t)

	d, err := OpenFile(path, 128, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if stat.Size() != 512 {
		t.Errorf("Expected 512 byte image, got %d", stat.Size())
	}

	buf := make([]byte, 128)
	if err := d.Read(3, 0, buf); err != nil {
		t.Fatal(err)
	}
	if !IsErased(buf) {
		t.Error("Expected erased block in new image")
	}
}

// TestFileDevicePersistence tests programmed data survives reopening
func TestFileDevicePersistence(t *testing.T) {
	path := testutil.TempImage(t)

	d, err := OpenFile(path, 128, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Program(2, 7, []byte("flash")); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d2, err := OpenFile(path, 128, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Close()

	buf := make([]byte, 5)
	if err := d2.Read(2, 7, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "flash" {
		t.Errorf("Expected flash, got %q", buf)
	}

	if err := d2.Program(2, 7, []byte("x")); !errors.Is(err, common.ErrWriteFault) {
		t.Errorf("Expected ErrWriteFault, got %v", err)
	}

	if err := d2.Erase(2); err != nil {
		t.Fatal(err)
	}
	if err := d2.Program(2, 7, []byte("x")); err != nil {
		t.Errorf("Program after erase failed: %v", err)
	}
}

// TestFileDeviceGeometryMismatch tests an image cannot be reopened with another geometry
func TestFileDeviceGeometryMismatch(t *testing.T) {
	path := testutil.TempImage(t)

	d, err := OpenFile(path, 128, 4)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	if _, err := OpenFile(path, 256, 4); err == nil {
		t.Error("Expected geometry mismatch error")
	}
}
