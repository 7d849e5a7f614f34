package flash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/intellect4all/flashdb/common"
	"github.com/intellect4all/flashdb/common/testutil"
)

// TestMemDeviceErasedOnCreate tests a new device reads as erased flash
func TestMemDeviceErasedOnCreate(t *testing.T) {
	d := NewMemDevice(64, 4)

	buf := make([]byte, 64)
	for b := 0; b < 4; b++ {
		if err := d.Read(b, 0, buf); err != nil {
			t.Fatal(err)
		}
		if !IsErased(buf) {
			t.Errorf("block %d not erased", b)
		}
	}
}

// TestMemDeviceProgramRead tests data survives a program/read round trip
func TestMemDeviceProgramRead(t *testing.T) {
	d := NewMemDevice(64, 2)

	if err := d.Program(1, 10, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 5)
	if err := d.Read(1, 10, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Errorf("Expected hello, got %q", buf)
	}

	// Neighbouring bytes stay erased
	edge := make([]byte, 1)
	if err := d.Read(1, 15, edge); err != nil {
		t.Fatal(err)
	}
	if edge[0] != Erased {
		t.Errorf("Expected erased byte after program, got %x", edge[0])
	}
}

// TestMemDeviceWriteFault tests reprogramming without erase is rejected
func TestMemDeviceWriteFault(t *testing.T) {
	d := NewMemDevice(64, 2)

	if err := d.Program(0, 0, []byte{0xFF, 0xFF}); err != nil {
		t.Fatal(err)
	}

	// Programming 0xFF still counts as programmed
	err := d.Program(0, 1, []byte{0x00})
	if !errors.Is(err, common.ErrWriteFault) {
		t.Fatalf("Expected ErrWriteFault, got %v", err)
	}

	if err := d.Erase(0); err != nil {
		t.Fatal(err)
	}
	if err := d.Program(0, 1, []byte{0x00}); err != nil {
		t.Errorf("Program after erase failed: %v", err)
	}
	if d.EraseCount(0) != 1 {
		t.Errorf("Expected erase count 1, got %d", d.EraseCount(0))
	}
	if d.EraseCount(1) != 0 {
		t.Errorf("Expected erase count 0 for untouched block, got %d", d.EraseCount(1))
	}
}

// TestMemDeviceOutOfRange tests bounds checking
func TestMemDeviceOutOfRange(t *testing.T) {
	d := NewMemDevice(64, 2)

	cases := []struct {
		name string
		err  error
	}{
		{"block", d.Read(2, 0, make([]byte, 1))},
		{"negative block", d.Erase(-1)},
		{"past end", d.Program(0, 60, make([]byte, 8))},
		{"negative offset", d.Read(0, -1, make([]byte, 1))},
	}

	for _, c := range cases {
		if !errors.Is(c.err, ErrOutOfRange) {
			t.Errorf("%s: expected ErrOutOfRange, got %v", c.name, c.err)
		}
	}
}

// TestMemDevicePowerLoss tests a cut during program leaves a truncated write
func TestMemDevicePowerLoss(t *testing.T) {
	d := NewMemDevice(64, 2)
	power := testutil.NewPowerCut(3, -1)
	d.SetPower(power)

	err := d.Program(0, 0, []byte("abcdef"))
	if !errors.Is(err, ErrPowerLoss) {
		t.Fatalf("Expected ErrPowerLoss, got %v", err)
	}
	if !power.Tripped() {
		t.Error("Expected power to be tripped")
	}

	buf := make([]byte, 6)
	if err := d.Read(0, 0, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{'a', 'b', 'c', Erased, Erased, Erased}) {
		t.Errorf("Unexpected contents after cut: %q", buf)
	}

	// Nothing works until power returns
	if err := d.Erase(1); !errors.Is(err, ErrPowerLoss) {
		t.Errorf("Expected erase to fail without power, got %v", err)
	}

	d.SetPower(nil)
	if err := d.Program(0, 3, []byte("def")); err != nil {
		t.Errorf("Program after restore failed: %v", err)
	}
}

// TestMemDeviceEraseCut tests a refused erase leaves the block untouched
func TestMemDeviceEraseCut(t *testing.T) {
	d := NewMemDevice(64, 2)
	if err := d.Program(0, 0, []byte("keep")); err != nil {
		t.Fatal(err)
	}

	d.SetPower(testutil.NewPowerCut(-1, 0))
	if err := d.Erase(0); !errors.Is(err, ErrPowerLoss) {
		t.Fatalf("Expected ErrPowerLoss, got %v", err)
	}
	if d.EraseCount(0) != 0 {
		t.Errorf("Refused erase was counted")
	}

	buf := make([]byte, 4)
	if err := d.Read(0, 0, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "keep" {
		t.Errorf("Expected keep, got %q", buf)
	}
}
