package node

import (
	"testing"

	"curecoin.dev/node/consensus"
	"curecoin.dev/node/crypto/cryptotest"
)

func out(k *cryptotest.Key, amount uint64) consensus.Output {
	return consensus.Output{Address: k.Address, Amount: amount}
}

func signTx(t *testing.T, from *cryptotest.Key, input uint64, index int64, outs ...consensus.Output) *consensus.Transaction {
	t.Helper()
	tx, err := consensus.SignTransaction(from.Seed, from.Tree, input, outs, index)
	if err != nil {
		t.Fatalf("sign tx from %s[%d]: %v", from.Name, index, err)
	}
	return tx
}

// miner seals blocks for one key, never reusing a leaf.
type miner struct {
	t    *testing.T
	key  *cryptotest.Key
	next int64
}

func newMiner(t *testing.T, name string) *miner {
	t.Helper()
	return &miner{t: t, key: cryptotest.NewKey(t, name)}
}

func (m *miner) block(num int64, prev string, txs ...*consensus.Transaction) *consensus.Block {
	m.t.Helper()
	return m.seal(consensus.DIFFICULTY_POW, num, prev, "0", txs...)
}

func (m *miner) blockOnLedger(num int64, prev, ledgerHash string, txs ...*consensus.Transaction) *consensus.Block {
	m.t.Helper()
	return m.seal(consensus.DIFFICULTY_POW, num, prev, ledgerHash, txs...)
}

func (m *miner) stakeBlock(num int64, prev string, txs ...*consensus.Transaction) *consensus.Block {
	m.t.Helper()
	return m.seal(consensus.DIFFICULTY_POS, num, prev, "0", txs...)
}

func (m *miner) seal(difficulty, num int64, prev, ledgerHash string, txs ...*consensus.Transaction) *consensus.Block {
	m.t.Helper()
	certIndex := m.next
	m.next += 2
	cert := &consensus.SignedCertificate{
		Redeem:    m.key.Address,
		Data:      "data",
		Max:       1 << 20,
		Authority: "test",
		Num:       num,
		PrevHash:  prev,
	}
	if err := cert.Sign(m.key.Seed, m.key.Tree, certIndex); err != nil {
		m.t.Fatalf("sign certificate: %v", err)
	}
	texts := make([]string, 0, len(txs))
	for _, tx := range txs {
		texts = append(texts, tx.String())
	}
	b := &consensus.Block{
		Timestamp:         1_700_000_000_000 + certIndex,
		BlockNum:          num,
		PreviousBlockHash: prev,
		Certificate:       cert,
		Difficulty:        difficulty,
		LedgerHashBefore:  ledgerHash,
		Transactions:      texts,
	}
	if difficulty == consensus.DIFFICULTY_POW {
		target := consensus.WorkTarget(difficulty)
		for cert.ScoreAtNonce(b.WinningNonce) < target {
			b.WinningNonce++
		}
	}
	if err := b.Seal(m.key.Seed, m.key.Tree, certIndex+1); err != nil {
		m.t.Fatalf("seal block %d: %v", num, err)
	}
	return b
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Network = "testnet"
	return cfg
}

func newTestChain(t *testing.T, cfg Config, opts ChainOptions) *Chain {
	t.Helper()
	c, err := NewChain(cfg, opts)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	return c
}

func mustAdd(t *testing.T, c *Chain, b *consensus.Block, want Decision) {
	t.Helper()
	got, err := c.AddBlock(b)
	if err != nil {
		t.Fatalf("add block %d (%s): %v", b.BlockNum, b.BlockHash, err)
	}
	if got != want {
		t.Fatalf("add block %d: decision %s, want %s", b.BlockNum, got, want)
	}
}
