package store

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
)

// NewID returns a random base-36 identifier of up to 13 characters.
func NewID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "id-unknown"
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 36)
}
