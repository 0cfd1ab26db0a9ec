package crypto_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"curecoin.dev/node/crypto"
	"curecoin.dev/node/crypto/cryptotest"
)

func TestTreeShape(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	require.Equal(t, crypto.MinTreeDepth, k.Tree.Depth)
	require.Len(t, k.Tree.Layers, k.Tree.Depth+1)
	for level, nodes := range k.Tree.Layers {
		require.Len(t, nodes, 1<<(k.Tree.Depth-level), "level %d", level)
	}
	require.True(t, crypto.IsAddressFormattedCorrectly(k.Address))
	require.Equal(t, "C1", k.Address[:2])
}

func TestGenerateTreeDeterministicAndCancellable(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	again, err := crypto.GenerateTree(context.Background(), k.Seed, crypto.MinTreeDepth)
	require.NoError(t, err)
	require.Equal(t, k.Tree.Root(), again.Root())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = crypto.GenerateTree(ctx, k.Seed, crypto.MinTreeDepth)
	require.ErrorIs(t, err, context.Canceled)

	_, err = crypto.GenerateTree(context.Background(), k.Seed, 13)
	require.Error(t, err)
	_, err = crypto.GenerateTree(context.Background(), "", crypto.MinTreeDepth)
	require.Error(t, err)
}

func TestTreeSaveLoad(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	dir := filepath.Join(t.TempDir(), "keys")
	require.NoError(t, k.Tree.Save(dir))

	loaded, err := crypto.LoadTree(dir)
	require.NoError(t, err)
	addr, err := loaded.Address()
	require.NoError(t, err)
	require.Equal(t, k.Address, addr)

	p1, err := k.Tree.AuthPath(100)
	require.NoError(t, err)
	p2, err := loaded.AuthPath(100)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestLoadTreeRejectsTamperedLeaves(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	dir := t.TempDir()
	require.NoError(t, k.Tree.Save(dir))

	other := cryptotest.NewKey(t, "bob")
	odir := t.TempDir()
	require.NoError(t, other.Tree.Save(odir))
	raw, err := os.ReadFile(filepath.Join(odir, "layer0.lyr"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layer0.lyr"), raw, 0o600))

	_, err = crypto.LoadTree(dir)
	require.Error(t, err)
}

func TestAuthPathRange(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	_, err := k.Tree.AuthPath(-1)
	require.Error(t, err)
	_, err = k.Tree.AuthPath(k.Tree.LeafCount())
	require.Error(t, err)
	p, err := k.Tree.AuthPath(0)
	require.NoError(t, err)
	require.Len(t, p, k.Tree.Depth)
	require.Equal(t, k.Tree.Layers[0][1], p[0])
}
