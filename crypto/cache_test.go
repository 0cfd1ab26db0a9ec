package crypto_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"curecoin.dev/node/crypto"
	"curecoin.dev/node/crypto/cryptotest"
)

type countingVerifier struct {
	calls atomic.Int64
}

func (c *countingVerifier) VerifyMerkleSignature(message, signature, address string, index int64) bool {
	c.calls.Add(1)
	return crypto.VerifyMerkleSignature(message, signature, address, index)
}

func TestCachedVerifierMemoizes(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	sig := k.Sign(t, "cached", 3)

	inner := &countingVerifier{}
	cv, err := crypto.NewCachedVerifier(context.Background(), inner, 8, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cv.Close() })

	for i := 0; i < 3; i++ {
		require.True(t, cv.VerifyMerkleSignature("cached", sig, k.Address, 3))
	}
	require.Equal(t, int64(1), inner.calls.Load())

	for i := 0; i < 2; i++ {
		require.False(t, cv.VerifyMerkleSignature("cached!", sig, k.Address, 3))
	}
	require.Equal(t, int64(2), inner.calls.Load())
	require.Equal(t, 2, cv.Len())
}

func TestCachedVerifierDefaultsInner(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	sig := k.Sign(t, "d", 4)
	cv, err := crypto.NewCachedVerifier(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	defer cv.Close()
	require.True(t, cv.VerifyMerkleSignature("d", sig, k.Address, 4))
	require.False(t, cv.VerifyMerkleSignature("d", sig, k.Address, 5))
}
