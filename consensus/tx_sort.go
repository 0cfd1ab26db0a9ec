package consensus

import (
	"slices"

	"curecoin.dev/node/crypto"
)

type sigKey struct {
	source string
	index  int64
}

// SortBySignatureIndex drops entries that fail ValidateTransaction, keeps only
// the first of any entries that reuse a (source, index) pair, and stable-sorts
// the rest so each source's transactions appear in increasing index order.
func SortBySignatureIndex(v crypto.Verifier, texts []string) []*Transaction {
	out := make([]*Transaction, 0, len(texts))
	seen := make(map[sigKey]struct{}, len(texts))
	for _, text := range texts {
		tx, err := ValidateTransaction(v, text)
		if err != nil {
			continue
		}
		k := sigKey{tx.Source, tx.SignatureIndex}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, tx)
	}
	slices.SortStableFunc(out, func(a, b *Transaction) int {
		switch {
		case a.SignatureIndex < b.SignatureIndex:
			return -1
		case a.SignatureIndex > b.SignatureIndex:
			return 1
		}
		return 0
	})
	return out
}
