package crypto

// Verifier is the narrow signature interface used by consensus code.
// Implementations may memoize results; they must stay pure per input.
type Verifier interface {
	VerifyMerkleSignature(message, signature, address string, index int64) bool
}

// MerkleVerifier verifies directly, without caching.
type MerkleVerifier struct{}

func (MerkleVerifier) VerifyMerkleSignature(message, signature, address string, index int64) bool {
	return VerifyMerkleSignature(message, signature, address, index)
}
