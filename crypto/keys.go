package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

const (
	// LamportBits is the number of message-digest bits covered by one signature.
	LamportBits = 100
	// LamportParts is the number of private (and public) key parts per leaf.
	LamportParts = 2 * LamportBits
	// PrivatePartLen is the length of one alphanumeric private key part.
	PrivatePartLen = 20
	// leafSeedLen is the size of one draw from the seed stream.
	leafSeedLen = 100

	seedAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// KeySeed is the secret from which a whole tree of one-time keypairs is derived.
// It never leaves its holder.
type KeySeed string

// GenerateSeed returns a random 32-character alphanumeric seed.
func GenerateSeed() (KeySeed, error) {
	buf := make([]byte, 32)
	out := make([]byte, 0, 32)
	for len(out) < 32 {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("seed entropy: %w", err)
		}
		out = appendAlnum(out, buf, 32)
	}
	return KeySeed(out), nil
}

// appendAlnum maps raw bytes onto the alphanumeric alphabet by rejection sampling
// and appends up to limit characters to dst.
func appendAlnum(dst []byte, raw []byte, limit int) []byte {
	const accept = 248 // 4*62
	for _, b := range raw {
		if len(dst) >= limit {
			break
		}
		if b >= accept {
			continue
		}
		dst = append(dst, seedAlphabet[int(b)%len(seedAlphabet)])
	}
	return dst
}

func newStream(material []byte) (*chacha20.Cipher, error) {
	key := sha256.Sum256(material)
	var nonce [chacha20.NonceSize]byte
	return chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
}

// leafSeed returns the index-th 100-byte draw of the seed stream.
func leafSeed(seed KeySeed, index int64) ([]byte, error) {
	if index < 0 {
		return nil, errors.New("negative leaf index")
	}
	s, err := newStream([]byte("curecoin-leaf:" + string(seed)))
	if err != nil {
		return nil, err
	}
	offset := uint64(index) * leafSeedLen
	block := offset / 64
	if block > 0xffffffff {
		return nil, fmt.Errorf("leaf index %d beyond stream range", index)
	}
	s.SetCounter(uint32(block))
	skip := int(offset % 64)
	buf := make([]byte, skip+leafSeedLen)
	s.XORKeyStream(buf, buf)
	return buf[skip:], nil
}

// DeriveKeypair deterministically derives the 200 private key parts of leaf index.
func DeriveKeypair(seed KeySeed, index int64) ([LamportParts]string, error) {
	var parts [LamportParts]string
	sub, err := leafSeed(seed, index)
	if err != nil {
		return parts, err
	}
	s, err := newStream(sub)
	if err != nil {
		return parts, err
	}
	chars := make([]byte, 0, LamportParts*PrivatePartLen)
	raw := make([]byte, 512)
	for len(chars) < cap(chars) {
		clear(raw)
		s.XORKeyStream(raw, raw)
		chars = appendAlnum(chars, raw, cap(chars))
	}
	for i := range parts {
		parts[i] = string(chars[i*PrivatePartLen : (i+1)*PrivatePartLen])
	}
	return parts, nil
}

// lamportHash is the public-part hash for bit position i: SHA-512 for the last
// bit, truncated SHA-256 otherwise.
func lamportHash(bit int, part string) string {
	if bit == LamportBits-1 {
		return sha512B64(part)
	}
	return sha256Short(part)
}

// LamportPublicKey hashes every private part into its public counterpart.
func LamportPublicKey(private [LamportParts]string) [LamportParts]string {
	var pub [LamportParts]string
	for i := range private {
		pub[i] = lamportHash(i/2, private[i])
	}
	return pub
}

// leafDigest is the bottom-layer Merkle node for a Lamport public key.
func leafDigest(pub [LamportParts]string) string {
	n := 0
	for _, p := range pub {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	for _, p := range pub {
		buf = append(buf, p...)
	}
	return sha256B64(string(buf))
}
