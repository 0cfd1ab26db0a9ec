package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/base64"
)

const (
	// shortDigestLen is the truncated length of a Lamport public part.
	shortDigestLen = 16
	// rootLen is the number of base32 characters of the tree root kept in an address.
	rootLen = 32
	// checksumLen is the number of base32 characters of the address checksum.
	checksumLen = 4
)

func sha256B64(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func sha256Short(s string) string {
	return sha256B64(s)[:shortDigestLen]
}

func sha512B64(s string) string {
	sum := sha512.Sum512([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func sha256Base32(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base32.StdEncoding.EncodeToString(sum[:])
}

// messageBits returns the first n bits of SHA-256(message), most significant bit
// first, as a slice of 0/1 values. The digest is treated as a fixed 256-bit value,
// so leading zero bits are kept.
func messageBits(message string, n int) []byte {
	sum := sha256.Sum256([]byte(message))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = (sum[i/8] >> (7 - uint(i%8))) & 1
	}
	return out
}
