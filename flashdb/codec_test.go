package flashdb

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/intellect4all/flashdb/common"
)

// TestRecordRoundTrip tests encode/decode keeps key, value and sequence
func TestRecordRoundTrip(t *testing.T) {
	buf := encodeRecord([]byte("sensor/7"), []byte{0x00, 0xFF, 0x10}, 42)

	if len(buf) != recordSize(8, 3) {
		t.Fatalf("Expected %d bytes, got %d", recordSize(8, 3), len(buf))
	}

	rec, err := decodeRecord(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.key) != "sensor/7" {
		t.Errorf("Expected key sensor/7, got %q", rec.key)
	}
	if !bytes.Equal(rec.value, []byte{0x00, 0xFF, 0x10}) {
		t.Errorf("Unexpected value %x", rec.value)
	}
	if rec.seq != 42 {
		t.Errorf("Expected seq 42, got %d", rec.seq)
	}
}

// TestRecordEmptyValue tests zero-length values are valid records
func TestRecordEmptyValue(t *testing.T) {
	rec, err := decodeRecord(encodeRecord([]byte("k"), nil, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.value) != 0 {
		t.Errorf("Expected empty value, got %d bytes", len(rec.value))
	}
}

// TestRecordTruncated tests every prefix of a record is rejected
func TestRecordTruncated(t *testing.T) {
	buf := encodeRecord([]byte("key"), []byte("value"), 7)

	for n := 0; n < len(buf); n++ {
		// Simulate a program cut short: the rest of the record reads erased.
		torn := bytes.Repeat([]byte{0xFF}, len(buf))
		copy(torn, buf[:n])

		_, err := decodeRecord(torn)
		if err == nil {
			t.Fatalf("Torn record with %d of %d bytes decoded", n, len(buf))
		}
		if n > 0 && !errors.Is(err, common.ErrIntegrity) {
			t.Errorf("Prefix %d: expected ErrIntegrity, got %v", n, err)
		}
	}
}

// TestRecordErased tests blank flash is reported as the end of the log
func TestRecordErased(t *testing.T) {
	blank := bytes.Repeat([]byte{0xFF}, recordHeaderSize)
	if _, _, err := parseRecordHeader(blank); !errors.Is(err, errErased) {
		t.Errorf("Expected errErased, got %v", err)
	}
}

// TestRecordFirstByteNeverErased tests a record cut after its first byte is
// never mistaken for blank flash, whatever the key length
func TestRecordFirstByteNeverErased(t *testing.T) {
	for keySize := 1; keySize <= MaxKeySize; keySize++ {
		buf := encodeRecord([]byte(strings.Repeat("k", keySize)), nil, 1)

		torn := bytes.Repeat([]byte{0xFF}, recordHeaderSize)
		torn[0] = buf[0]
		if _, _, err := parseRecordHeader(torn); !errors.Is(err, common.ErrIntegrity) {
			t.Fatalf("Key size %d: one programmed byte read as %v", keySize, err)
		}
	}
}

// TestRecordCorruption tests a flipped bit anywhere is detected
func TestRecordCorruption(t *testing.T) {
	buf := encodeRecord([]byte("key"), []byte("value"), 7)

	for i := range buf {
		corrupt := append([]byte(nil), buf...)
		corrupt[i] ^= 0x01
		if _, err := decodeRecord(corrupt); err == nil {
			t.Errorf("Bit flip at byte %d not detected", i)
		}
	}
}

// TestBlockHeader tests erase counts survive the block header format
func TestBlockHeader(t *testing.T) {
	count, err := decodeBlockHeader(encodeBlockHeader(1234))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1234 {
		t.Errorf("Expected 1234, got %d", count)
	}

	if _, err := decodeBlockHeader(bytes.Repeat([]byte{0xFF}, blockHeaderSize)); !errors.Is(err, errErased) {
		t.Errorf("Expected errErased for blank header, got %v", err)
	}

	bad := encodeBlockHeader(5)
	bad[5] ^= 0x80
	if _, err := decodeBlockHeader(bad); !errors.Is(err, common.ErrIntegrity) {
		t.Errorf("Expected ErrIntegrity, got %v", err)
	}
}

// TestValidateKey tests key constraints
func TestValidateKey(t *testing.T) {
	cases := []struct {
		key  []byte
		want error
	}{
		{[]byte("a"), nil},
		{[]byte(strings.Repeat("k", MaxKeySize)), nil},
		{nil, common.ErrKeyEmpty},
		{[]byte(strings.Repeat("k", MaxKeySize+1)), common.ErrKeyTooLong},
		{[]byte("nul\x00inside"), common.ErrKeyInvalid},
		{[]byte("caf\xc3\xa9"), common.ErrKeyInvalid},
	}

	for _, c := range cases {
		if err := validateKey(c.key); !errors.Is(err, c.want) {
			t.Errorf("validateKey(%q) = %v, want %v", c.key, err, c.want)
		}
	}
}
