package crypto

import (
	"fmt"
	"strings"
)

// Address layout: 2-char prefix, 32-char base32 tree root, 4-char base32 checksum.
const AddressLen = 2 + rootLen + checksumLen

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Prefixes C1..C5 encode the tree depth (authentication path length).
var prefixDepth = map[string]int{
	"C1": 14,
	"C2": 15,
	"C3": 16,
	"C4": 17,
	"C5": 18,
}

const (
	MinTreeDepth = 14
	MaxTreeDepth = 18
)

// PrefixForDepth returns the address prefix for a tree depth.
func PrefixForDepth(depth int) (string, error) {
	if depth < MinTreeDepth || depth > MaxTreeDepth {
		return "", fmt.Errorf("tree depth %d outside [%d,%d]", depth, MinTreeDepth, MaxTreeDepth)
	}
	return fmt.Sprintf("C%d", depth-MinTreeDepth+1), nil
}

// AddressDepth returns the tree depth encoded by the address prefix.
func AddressDepth(address string) (int, bool) {
	if len(address) < 2 {
		return 0, false
	}
	d, ok := prefixDepth[address[:2]]
	return d, ok
}

// AddressRoot returns the embedded tree root, or "" for a short address.
func AddressRoot(address string) string {
	if len(address) < 2+rootLen {
		return ""
	}
	return address[2 : 2+rootLen]
}

func addressChecksum(prefix, root string) string {
	return sha256Base32(prefix + root)[:checksumLen]
}

// AddressFromRoot assembles an address for a tree of the given depth.
func AddressFromRoot(depth int, root string) (string, error) {
	prefix, err := PrefixForDepth(depth)
	if err != nil {
		return "", err
	}
	if len(root) != rootLen || !isBase32(root) {
		return "", fmt.Errorf("tree root must be %d base32 chars", rootLen)
	}
	return prefix + root + addressChecksum(prefix, root), nil
}

// IsAddressFormattedCorrectly checks the prefix, the root charset and the checksum.
func IsAddressFormattedCorrectly(address string) bool {
	if len(address) != AddressLen {
		return false
	}
	prefix := address[:2]
	if _, ok := prefixDepth[prefix]; !ok {
		return false
	}
	root := address[2 : 2+rootLen]
	if !isBase32(root) {
		return false
	}
	return address[2+rootLen:] == addressChecksum(prefix, root)
}

func isBase32(s string) bool {
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(base32Alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
