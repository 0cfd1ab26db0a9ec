package crypto

import (
	"errors"
	"fmt"
	"strings"
)

// Sign produces the one-time Merkle signature of message with leaf index.
//
// Every (seed, index) pair may be used at most once; index allocation is the
// caller's responsibility.
func Sign(message string, seed KeySeed, tree *MerkleTree, index int64) (string, error) {
	if tree == nil {
		return "", errors.New("nil tree")
	}
	path, err := tree.AuthPath(index)
	if err != nil {
		return "", err
	}
	priv, err := DeriveKeypair(seed, index)
	if err != nil {
		return "", err
	}
	if leafDigest(LamportPublicKey(priv)) != tree.Layers[0][index] {
		return "", fmt.Errorf("key seed does not match tree leaf %d", index)
	}

	bits := messageBits(message, LamportBits)
	pairs := make([]string, LamportBits)
	for i, bit := range bits {
		if bit == 0 {
			pairs[i] = priv[2*i] + ":" + lamportHash(i, priv[2*i+1])
		} else {
			pairs[i] = lamportHash(i, priv[2*i]) + ":" + priv[2*i+1]
		}
	}
	return strings.Join(pairs, "::") + "," + strings.Join(path, ":"), nil
}

// VerifyMerkleSignature reports whether signature was produced over message by the
// holder of address using leaf index. Malformed input yields false.
func VerifyMerkleSignature(message, signature, address string, index int64) bool {
	depth, ok := AddressDepth(address)
	if !ok || len(address) != AddressLen {
		return false
	}
	if index < 0 || index >= int64(1)<<depth {
		return false
	}
	lamport, authPath, ok := strings.Cut(signature, ",")
	if !ok {
		return false
	}
	pairs := strings.Split(lamport, "::")
	if len(pairs) != LamportBits {
		return false
	}
	path := strings.Split(authPath, ":")
	if len(path) != depth {
		return false
	}

	bits := messageBits(message, LamportBits)
	var pub [LamportParts]string
	for i, pair := range pairs {
		first, second, ok := strings.Cut(pair, ":")
		if !ok || first == "" || second == "" {
			return false
		}
		if bits[i] == 0 {
			pub[2*i] = lamportHash(i, first)
			pub[2*i+1] = second
		} else {
			pub[2*i] = first
			pub[2*i+1] = lamportHash(i, second)
		}
	}

	rolling := leafDigest(pub)
	for level, sibling := range path {
		if sibling == "" {
			return false
		}
		if (index>>level)&1 == 0 {
			rolling = combineNodes(level, depth, rolling, sibling)
		} else {
			rolling = combineNodes(level, depth, sibling, rolling)
		}
	}
	return rolling == AddressRoot(address)
}
