package consensus

import (
	"testing"

	"curecoin.dev/node/crypto/cryptotest"
)

func mustSignTx(t *testing.T, from *cryptotest.Key, input uint64, index int64, outs ...Output) *Transaction {
	t.Helper()
	tx, err := SignTransaction(from.Seed, from.Tree, input, outs, index)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return tx
}

// newWorkBlock builds a sealed work-mode block mined by miner. The certificate
// is signed with certIndex and the block with certIndex+1.
func newWorkBlock(t *testing.T, miner *cryptotest.Key, num int64, prev string, certIndex int64, txs ...string) *Block {
	t.Helper()
	cert := &SignedCertificate{
		Redeem:    miner.Address,
		Data:      "data",
		Max:       1 << 20,
		Authority: "test",
		Num:       num,
		PrevHash:  prev,
	}
	if err := cert.Sign(miner.Seed, miner.Tree, certIndex); err != nil {
		t.Fatalf("sign certificate: %v", err)
	}
	b := &Block{
		Timestamp:         1_700_000_000_000 + num,
		BlockNum:          num,
		PreviousBlockHash: prev,
		Certificate:       cert,
		Difficulty:        DIFFICULTY_POW,
		LedgerHashBefore:  "LEDGER",
		Transactions:      txs,
	}
	target := WorkTarget(DIFFICULTY_POW)
	for cert.ScoreAtNonce(b.WinningNonce) < target {
		b.WinningNonce++
	}
	if err := b.Seal(miner.Seed, miner.Tree, certIndex+1); err != nil {
		t.Fatalf("seal: %v", err)
	}
	return b
}

type historyMap map[int64]string

func (h historyMap) MinerAt(n int64) (string, bool) {
	m, ok := h[n]
	return m, ok
}
