package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"curecoin.dev/node/crypto/cryptotest"
)

func TestSortBySignatureIndex(t *testing.T) {
	a := cryptotest.NewKey(t, "alice")
	b := cryptotest.NewKey(t, "bob")

	a2 := mustSignTx(t, a, 10, 2, Output{b.Address, 1})
	a0 := mustSignTx(t, a, 10, 0, Output{b.Address, 1})
	a1 := mustSignTx(t, a, 10, 1, Output{b.Address, 1})
	b0 := mustSignTx(t, b, 5, 0, Output{a.Address, 5})
	a1dup := mustSignTx(t, a, 11, 1, Output{b.Address, 2})

	bad := *a0
	bad.InputAmount = 11

	in := []string{a2.String(), "garbage", b0.String(), a0.String(), bad.String(), a1.String(), a1dup.String()}
	out := SortBySignatureIndex(nil, in)
	require.Len(t, out, 4)

	last := map[string]int64{}
	for _, tx := range out {
		prev, ok := last[tx.Source]
		if ok {
			require.Greater(t, tx.SignatureIndex, prev)
		}
		last[tx.Source] = tx.SignatureIndex
		require.NotEqual(t, bad.String(), tx.String())
	}
	var aIdx []int64
	for _, tx := range out {
		if tx.Source == a.Address {
			aIdx = append(aIdx, tx.SignatureIndex)
		}
	}
	require.Equal(t, []int64{0, 1, 2}, aIdx)
	// the first entry for index 1 wins
	for _, tx := range out {
		if tx.Source == a.Address && tx.SignatureIndex == 1 {
			require.Equal(t, a1.String(), tx.String())
		}
	}
}
