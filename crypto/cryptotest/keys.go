// Package cryptotest provides deterministic address fixtures for tests.
// Trees are generated once per process and shared.
package cryptotest

import (
	"context"
	"sync"
	"testing"

	"curecoin.dev/node/crypto"
)

type Key struct {
	Name    string
	Seed    crypto.KeySeed
	Tree    *crypto.MerkleTree
	Address string
}

var (
	mu   sync.Mutex
	keys = map[string]*Key{}
)

// NewKey returns the depth-14 fixture key for name, generating it on first use.
func NewKey(tb testing.TB, name string) *Key {
	tb.Helper()
	mu.Lock()
	defer mu.Unlock()
	if k, ok := keys[name]; ok {
		return k
	}
	seed := crypto.KeySeed("cryptotest-seed-" + name)
	tree, err := crypto.GenerateTree(context.Background(), seed, crypto.MinTreeDepth)
	if err != nil {
		tb.Fatalf("generate tree %s: %v", name, err)
	}
	addr, err := tree.Address()
	if err != nil {
		tb.Fatalf("tree address %s: %v", name, err)
	}
	k := &Key{Name: name, Seed: seed, Tree: tree, Address: addr}
	keys[name] = k
	return k
}

// Sign signs message with leaf index and fails the test on error.
func (k *Key) Sign(tb testing.TB, message string, index int64) string {
	tb.Helper()
	sig, err := crypto.Sign(message, k.Seed, k.Tree, index)
	if err != nil {
		tb.Fatalf("sign with %s[%d]: %v", k.Name, index, err)
	}
	return sig
}
