// utils/hash.go
package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Hex keys the token cache and derives player ids from email claims.
// It is a stable one-way mapping, not a password hash.
func MD5Hex(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
