package common

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrStoreFull   = errors.New("store full")

	ErrClosed   = errors.New("storage engine closed")
	ErrKeyEmpty = errors.New("key cannot be empty")

	ErrKeyTooLong     = errors.New("key longer than 256 bytes")
	ErrKeyInvalid     = errors.New("key must be ASCII without NUL")
	ErrValueTooLarge  = errors.New("value larger than 65536 bytes")
	ErrRecordTooLarge = errors.New("record does not fit in a block")

	// ErrWriteFault is returned by a flash device when a program targets
	// bytes that were not erased since they were last programmed.
	ErrWriteFault = errors.New("program without erase")

	// ErrIntegrity marks a record that failed its checksum or has no
	// commit marker. It never reaches callers of Get.
	ErrIntegrity = errors.New("record integrity check failed")

	// ErrBufferTooSmall is a not-found condition: the value exists but
	// does not fit the caller's buffer.
	ErrBufferTooSmall = fmt.Errorf("%w: value exceeds buffer", ErrKeyNotFound)
)
