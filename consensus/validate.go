package consensus

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"curecoin.dev/node/crypto"
)

// ChainHistory exposes the ancestry a candidate block extends.
type ChainHistory interface {
	// MinerAt returns the miner of ancestor block n, or false when n is not known.
	MinerAt(n int64) (string, bool)
}

// Rules holds the policy parameters of block validation.
type Rules struct {
	PoSWindow int64
}

func DefaultRules() Rules {
	return Rules{PoSWindow: POS_WINDOW}
}

// ValidateBlock runs ValidateBlockStandalone followed by CheckMinerHistory.
func ValidateBlock(v crypto.Verifier, b *Block, history ChainHistory) error {
	r := DefaultRules()
	if err := r.ValidateBlockStandalone(v, b); err != nil {
		return err
	}
	return r.CheckMinerHistory(b, history)
}

// ValidateBlockStandalone checks everything that does not depend on the chain:
// mode rules, block hash, miner signature and transaction signatures.
// Balances are not checked.
func (r Rules) ValidateBlockStandalone(v crypto.Verifier, b *Block) error {
	if b == nil {
		return cerr(MALFORMED_FORMAT, "nil block")
	}
	if v == nil {
		v = crypto.MerkleVerifier{}
	}
	if b.Certificate == nil {
		return cerr(MALFORMED_FORMAT, "block has no certificate")
	}
	switch b.Difficulty {
	case DIFFICULTY_POS:
		if b.WinningNonce > b.Difficulty {
			return cerrf(MALFORMED_FORMAT, "stake nonce %d above %d", b.WinningNonce, b.Difficulty)
		}
		if b.BlockNum < r.PoSWindow {
			return cerrf(MALFORMED_FORMAT, "stake block %d below height %d", b.BlockNum, r.PoSWindow)
		}
	case DIFFICULTY_POW:
		cert := b.Certificate
		if !cert.ValidateCertificate() {
			return cerr(SIGNATURE_INVALID, "certificate does not validate")
		}
		if b.WinningNonce > cert.MaxNonce() {
			return cerrf(MALFORMED_FORMAT, "nonce %d above certificate max %d", b.WinningNonce, cert.MaxNonce())
		}
		if b.BlockNum != cert.BlockNum() {
			return cerrf(MALFORMED_FORMAT, "block %d carries certificate for block %d", b.BlockNum, cert.BlockNum())
		}
		if score := cert.ScoreAtNonce(b.WinningNonce); score < WorkTarget(b.Difficulty) {
			return cerrf(MALFORMED_FORMAT, "certificate score %d below target", score)
		}
	default:
		return cerrf(UNRECOGNIZED_MODE, "difficulty %d", b.Difficulty)
	}

	if got := b.ComputeHash(); got != b.BlockHash {
		return cerrf(HASH_MISMATCH, "declared %s, computed %s", b.BlockHash, got)
	}
	if !v.VerifyMerkleSignature(b.SigningMessage(), b.MinerSignature, b.Miner(), b.MinerSignatureIndex) {
		return cerrf(SIGNATURE_INVALID, "miner signature for %s at index %d", b.Miner(), b.MinerSignatureIndex)
	}
	return ValidateTransactions(v, b.Transactions)
}

// CheckMinerHistory enforces the stake-mode rule that the miner did not mine any
// of the PoSWindow blocks before this one. Unknown history fails closed.
func (r Rules) CheckMinerHistory(b *Block, history ChainHistory) error {
	if b == nil || b.Difficulty != DIFFICULTY_POS {
		return nil
	}
	if history == nil {
		return cerr(UNKNOWN_PLACEMENT, "stake block without chain history")
	}
	miner := b.Miner()
	for n := b.BlockNum - r.PoSWindow; n < b.BlockNum; n++ {
		m, ok := history.MinerAt(n)
		if !ok {
			return cerrf(UNKNOWN_PLACEMENT, "history for block %d unknown", n)
		}
		if m == miner {
			return cerrf(MALFORMED_FORMAT, "%s mined block %d within the stake window", miner, n)
		}
	}
	return nil
}

// WorkTarget is the minimum certificate score in work mode.
func WorkTarget(difficulty int64) int64 {
	half := difficulty / 2
	if half <= 0 {
		return math.MaxInt64
	}
	return math.MaxInt64 / half
}

// ValidateTransactions checks every explicit transaction's structure and
// signature. An empty list, or a single empty placeholder, passes. Signatures
// are verified concurrently; the error of the lowest failing entry is returned.
func ValidateTransactions(v crypto.Verifier, txs []string) error {
	if len(txs) == 0 || (len(txs) == 1 && txs[0] == "") {
		return nil
	}
	errs := make([]error, len(txs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, text := range txs {
		g.Go(func() error {
			_, errs[i] = ValidateTransaction(v, text)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
