package consensus

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"curecoin.dev/node/crypto"
)

const (
	// DIFFICULTY_POS and DIFFICULTY_POW are mode tags, not numeric difficulties.
	DIFFICULTY_POS int64 = 100000
	DIFFICULTY_POW int64 = 150000

	TX_LIST_SEP = "*"
)

type Block struct {
	Timestamp           int64
	BlockNum            int64
	PreviousBlockHash   string
	Certificate         Certificate
	Difficulty          int64
	WinningNonce        int64
	LedgerHashBefore    string
	Transactions        []string
	BlockHash           string
	MinerSignature      string
	MinerSignatureIndex int64
}

// Miner is the certificate's redeem address, or "" without a certificate.
func (b *Block) Miner() string {
	if b.Certificate == nil {
		return ""
	}
	return b.Certificate.RedeemAddress()
}

// IsRecognizedMode reports whether difficulty selects a known validity mode.
func IsRecognizedMode(difficulty int64) bool {
	return difficulty == DIFFICULTY_POS || difficulty == DIFFICULTY_POW
}

// joinTransactions skips empty placeholders.
func joinTransactions(txs []string) string {
	kept := make([]string, 0, len(txs))
	for _, tx := range txs {
		if tx != "" {
			kept = append(kept, tx)
		}
	}
	return strings.Join(kept, TX_LIST_SEP)
}

func (b *Block) header() string {
	return "{" + strconv.FormatInt(b.Timestamp, 10) +
		":" + strconv.FormatInt(b.BlockNum, 10) +
		":" + b.PreviousBlockHash +
		":" + strconv.FormatInt(b.Difficulty, 10) +
		":" + strconv.FormatInt(b.WinningNonce, 10) + "}"
}

// HashPayload is the canonical text the block hash commits to.
func (b *Block) HashPayload() string {
	cert := ""
	if b.Certificate != nil {
		cert = b.Certificate.FullCertificate()
	}
	return b.header() + ",{" + b.LedgerHashBefore + "},{" + joinTransactions(b.Transactions) + "}," + cert
}

// ComputeHash returns the upper-case hex SHA-256 of HashPayload.
func (b *Block) ComputeHash() string {
	sum := sha256.Sum256([]byte(b.HashPayload()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SigningMessage is what the miner signs: the payload followed by its hash.
func (b *Block) SigningMessage() string {
	return b.HashPayload() + ",{" + b.ComputeHash() + "}"
}

// RawBlock returns the block wire form.
func (b *Block) RawBlock() string {
	return b.HashPayload() +
		",{" + b.BlockHash + "}" +
		",{" + b.MinerSignature + "}" +
		",{" + strconv.FormatInt(b.MinerSignatureIndex, 10) + "}"
}

// Seal computes the block hash and signs the block as its miner with leaf index.
// tree must belong to the certificate's redeem address.
func (b *Block) Seal(seed crypto.KeySeed, tree *crypto.MerkleTree, index int64) error {
	if b.Certificate == nil {
		return cerr(MALFORMED_FORMAT, "block has no certificate")
	}
	b.BlockHash = b.ComputeHash()
	sig, err := crypto.Sign(b.SigningMessage(), seed, tree, index)
	if err != nil {
		return err
	}
	b.MinerSignature = sig
	b.MinerSignatureIndex = index
	return nil
}
