package flashdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/intellect4all/flashdb/common"
	"github.com/intellect4all/flashdb/flash"
)

// Record format on flash:
// [tag(1)][keysize(2)][valuesize(4)][seq(8)][key][value][crc32(4)][commit(4)]
//
// The crc covers everything before it. The commit marker is programmed by a
// separate, final program call, so a record cut short by power loss never
// carries it. The tag is never 0xFF, so even a single programmed byte of a
// torn record is distinguishable from erased flash.
const (
	recordHeaderSize  = 1 + 2 + 4 + 8
	recordTrailerSize = 4 + 4
	recordOverhead    = recordHeaderSize + recordTrailerSize
	commitSize        = 4

	recordTag    byte   = 0x52 // 'R'
	commitMarker uint32 = 0x600DC0DE

	MaxKeySize   = 256
	MaxValueSize = 65536
)

// Block header, programmed right after every erase:
// [magic(4)][erasecount(4)][crc32(4)]
const (
	blockHeaderSize        = 4 + 4 + 4
	blockMagic      uint32 = 0x4B424446 // "FDBK"
)

// errErased means the bytes read were never programmed: the clean end of a
// block's log.
var errErased = errors.New("erased flash")

type record struct {
	key   []byte
	value []byte
	seq   uint64
}

func recordSize(keySize, valueSize int) int {
	return recordOverhead + keySize + valueSize
}

func encodeRecord(key, value []byte, seq uint64) []byte {
	buf := make([]byte, recordSize(len(key), len(value)))

	buf[0] = recordTag
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(key)))
	binary.LittleEndian.PutUint32(buf[3:7], uint32(len(value)))
	binary.LittleEndian.PutUint64(buf[7:15], seq)
	copy(buf[recordHeaderSize:], key)
	copy(buf[recordHeaderSize+len(key):], value)

	end := recordHeaderSize + len(key) + len(value)
	binary.LittleEndian.PutUint32(buf[end:end+4], crc32.ChecksumIEEE(buf[:end]))
	binary.LittleEndian.PutUint32(buf[end+4:end+8], commitMarker)

	return buf
}

// parseRecordHeader returns the key and value sizes announced by a header.
func parseRecordHeader(header []byte) (int, int, error) {
	if flash.IsErased(header) {
		return 0, 0, errErased
	}

	if header[0] != recordTag {
		return 0, 0, fmt.Errorf("%w: bad record tag %#x", common.ErrIntegrity, header[0])
	}

	keySize := int(binary.LittleEndian.Uint16(header[1:3]))
	valueSize := int(binary.LittleEndian.Uint32(header[3:7]))
	if keySize == 0 || keySize > MaxKeySize || valueSize > MaxValueSize {
		return 0, 0, fmt.Errorf("%w: sizes key=%d value=%d", common.ErrIntegrity, keySize, valueSize)
	}
	return keySize, valueSize, nil
}

// decodeRecord validates buf as one complete record. Key and value alias buf.
func decodeRecord(buf []byte) (record, error) {
	if len(buf) < recordOverhead {
		return record{}, fmt.Errorf("%w: short record (%d bytes)", common.ErrIntegrity, len(buf))
	}

	keySize, valueSize, err := parseRecordHeader(buf[:recordHeaderSize])
	if err != nil {
		return record{}, err
	}
	if len(buf) != recordSize(keySize, valueSize) {
		return record{}, fmt.Errorf("%w: length %d does not match header", common.ErrIntegrity, len(buf))
	}

	end := recordHeaderSize + keySize + valueSize
	if binary.LittleEndian.Uint32(buf[end+4:end+8]) != commitMarker {
		return record{}, fmt.Errorf("%w: missing commit marker", common.ErrIntegrity)
	}

	crcStored := binary.LittleEndian.Uint32(buf[end : end+4])
	crcCalculated := crc32.ChecksumIEEE(buf[:end])
	if crcStored != crcCalculated {
		return record{}, fmt.Errorf("%w: CRC mismatch stored=%x calculated=%x", common.ErrIntegrity, crcStored, crcCalculated)
	}

	return record{
		key:   buf[recordHeaderSize : recordHeaderSize+keySize],
		value: buf[recordHeaderSize+keySize : end],
		seq:   binary.LittleEndian.Uint64(buf[7:15]),
	}, nil
}

func encodeBlockHeader(eraseCount uint32) []byte {
	buf := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], blockMagic)
	binary.LittleEndian.PutUint32(buf[4:8], eraseCount)
	binary.LittleEndian.PutUint32(buf[8:12], crc32.ChecksumIEEE(buf[:8]))
	return buf
}

func decodeBlockHeader(buf []byte) (uint32, error) {
	if flash.IsErased(buf) {
		return 0, errErased
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != blockMagic {
		return 0, fmt.Errorf("%w: bad block magic", common.ErrIntegrity)
	}
	if binary.LittleEndian.Uint32(buf[8:12]) != crc32.ChecksumIEEE(buf[:8]) {
		return 0, fmt.Errorf("%w: block header CRC mismatch", common.ErrIntegrity)
	}
	return binary.LittleEndian.Uint32(buf[4:8]), nil
}

// validateKey enforces 1-256 ASCII bytes without NUL.
func validateKey(key []byte) error {
	if len(key) == 0 {
		return common.ErrKeyEmpty
	}
	if len(key) > MaxKeySize {
		return common.ErrKeyTooLong
	}
	for _, c := range key {
		if c == 0 || c >= 0x80 {
			return common.ErrKeyInvalid
		}
	}
	return nil
}

func validateValue(value []byte) error {
	if len(value) > MaxValueSize {
		return common.ErrValueTooLarge
	}
	return nil
}
