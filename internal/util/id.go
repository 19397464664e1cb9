package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// GenerateID returns an identifier with the prefix, such as "Rlq3x9k2a-5f0c1a2b".
// The part after the prefix starts with the creation time in milliseconds, so IDs
// with the same prefix sort in the order they were generated.
func GenerateID(prefix string) string {
	var random [4]byte
	if _, err := rand.Read(random[:]); err != nil {
		panic(err)
	}
	return prefix + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(random[:])
}
