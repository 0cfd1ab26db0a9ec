package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"curecoin.dev/node/consensus"
	"curecoin.dev/node/crypto"
	"curecoin.dev/node/crypto/cryptotest"
	"curecoin.dev/node/node"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func genesisBlock(t *testing.T, k *cryptotest.Key) *consensus.Block {
	t.Helper()
	cert := &consensus.SignedCertificate{
		Redeem:    k.Address,
		Data:      "data",
		Max:       1 << 20,
		Authority: "test",
		Num:       0,
		PrevHash:  "0",
	}
	if err := cert.Sign(k.Seed, k.Tree, 0); err != nil {
		t.Fatalf("sign certificate: %v", err)
	}
	b := &consensus.Block{
		Timestamp:         1_700_000_000_000,
		PreviousBlockHash: "0",
		Certificate:       cert,
		Difficulty:        consensus.DIFFICULTY_POW,
		LedgerHashBefore:  "0",
	}
	for cert.ScoreAtNonce(b.WinningNonce) < consensus.WorkTarget(b.Difficulty) {
		b.WinningNonce++
	}
	if err := b.Seal(k.Seed, k.Tree, 1); err != nil {
		t.Fatalf("seal: %v", err)
	}
	return b
}

func TestCheckAddress(t *testing.T) {
	k := cryptotest.NewKey(t, "alice")
	out, err := execute(t, "check-address", k.Address)
	require.NoError(t, err)
	require.Equal(t, "ok depth=14 signatures=16384\n", out)

	swap := "A"
	if strings.HasSuffix(k.Address, "A") {
		swap = "B"
	}
	_, err = execute(t, "check-address", k.Address[:len(k.Address)-1]+swap)
	require.Error(t, err)
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "keygen", dir)
	require.NoError(t, err)
	addr := strings.TrimSpace(out)
	require.True(t, crypto.IsAddressFormattedCorrectly(addr), addr)

	tree, err := crypto.LoadTree(dir)
	require.NoError(t, err)
	got, err := tree.Address()
	require.NoError(t, err)
	require.Equal(t, addr, got)
	require.FileExists(t, filepath.Join(dir, node.SeedFileName))

	_, err = execute(t, "keygen", dir)
	require.ErrorContains(t, err, "already holds a key")
}

func TestVerifyTx(t *testing.T) {
	alice := cryptotest.NewKey(t, "alice")
	bob := cryptotest.NewKey(t, "bob")
	tx, err := consensus.SignTransaction(alice.Seed, alice.Tree, 100,
		[]consensus.Output{{Address: bob.Address, Amount: 90}}, 3)
	require.NoError(t, err)

	out, err := execute(t, "verify-tx", tx.String())
	require.NoError(t, err)
	var got txSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, alice.Address, got.Source)
	require.Equal(t, uint64(10), got.Fee)
	require.Equal(t, int64(3), got.SignatureIndex)

	forged := strings.Replace(tx.String(), ";90;", ";91;", 1)
	_, err = execute(t, "verify-tx", forged)
	require.True(t, consensus.IsCode(err, consensus.SIGNATURE_INVALID), "err=%v", err)
}

func TestInspectBlock(t *testing.T) {
	k := cryptotest.NewKey(t, "miner")
	b := genesisBlock(t, k)
	path := filepath.Join(t.TempDir(), "block.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.RawBlock()+"\n"), 0o600))

	out, err := execute(t, "inspect-block", path)
	require.NoError(t, err)
	var got blockSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.True(t, got.Valid, got.Error)
	require.Equal(t, b.BlockHash, got.BlockHash)
	require.Equal(t, k.Address, got.Miner)
}

func TestImportRunAndLedger(t *testing.T) {
	k := cryptotest.NewKey(t, "miner")
	b := genesisBlock(t, k)
	dir := t.TempDir()
	blocks := filepath.Join(t.TempDir(), "blocks.txt")
	require.NoError(t, os.WriteFile(blocks, []byte(b.RawBlock()+"\n\nnot a block\n"), 0o600))

	out, err := execute(t, "--datadir", dir, "--network", "testnet", "import", blocks)
	require.NoError(t, err)
	require.Contains(t, out, "line 1: "+string(node.DecisionAddedAsTip))
	require.Contains(t, out, "line 3: rejected")

	_, err = execute(t, "--datadir", dir, "--network", "testnet", "import", "--stop-on-error", blocks)
	require.Error(t, err)

	out, err = execute(t, "--datadir", dir, "--network", "testnet", "run", "--dry-run")
	require.NoError(t, err)
	var status chainStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Equal(t, int64(1), status.Length)
	require.Empty(t, status.Halted)

	out, err = execute(t, "--datadir", dir, "ledger")
	require.NoError(t, err)
	require.Contains(t, out, "last_block 0\n")
	require.Contains(t, out, k.Address+" balance=100 last_index=0\n")
	require.Contains(t, out, "hash "+status.LedgerHash+"\n")
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"network":"devnet","fork_window":0}`), 0o600))

	_, err := execute(t, "--config", cfgPath, "--datadir", dir, "run", "--dry-run")
	require.ErrorContains(t, err, "fork_window")

	_, err = execute(t, "--datadir", dir, "--log-level", "loud", "run", "--dry-run")
	require.ErrorContains(t, err, "log_level")
}
