package consensus

import (
	"strings"
)

const blockHeaderFields = 5

// ParseBlock decodes the wire form. The three leading groups are read from the
// front, the three trailing groups from the back, and the text between them is
// handed to parseCert. The declared hash must match the recomputed one.
func ParseBlock(raw string, parseCert CertificateParser) (*Block, error) {
	if parseCert == nil {
		parseCert = ParseSignedCertificate
	}
	rest := raw
	front := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		if !strings.HasPrefix(rest, "{") {
			return nil, cerrf(MALFORMED_FORMAT, "block group %d does not open with a brace", i)
		}
		end := strings.Index(rest, "},")
		if end < 0 {
			return nil, cerrf(MALFORMED_FORMAT, "block group %d is not terminated", i)
		}
		group := rest[1:end]
		if strings.ContainsAny(group, "{}") {
			return nil, cerrf(MALFORMED_FORMAT, "block group %d contains a brace", i)
		}
		front = append(front, group)
		rest = rest[end+2:]
	}

	back := make([]string, 3)
	for i := 2; i >= 0; i-- {
		if !strings.HasSuffix(rest, "}") {
			return nil, cerr(MALFORMED_FORMAT, "trailing block group does not close with a brace")
		}
		start := strings.LastIndex(rest, ",{")
		if start < 0 {
			return nil, cerr(MALFORMED_FORMAT, "missing trailing block group")
		}
		group := rest[start+2 : len(rest)-1]
		if strings.ContainsAny(group, "{}") {
			return nil, cerr(MALFORMED_FORMAT, "trailing block group contains a brace")
		}
		back[i] = group
		rest = rest[:start]
	}

	hdr := strings.Split(front[0], ":")
	if len(hdr) != blockHeaderFields {
		return nil, cerrf(MALFORMED_FORMAT, "block header has %d fields", len(hdr))
	}
	b := &Block{PreviousBlockHash: hdr[2], LedgerHashBefore: front[1]}
	var err error
	if b.Timestamp, err = parseInt64(hdr[0], "timestamp"); err != nil {
		return nil, err
	}
	if b.BlockNum, err = parseInt64(hdr[1], "block number"); err != nil {
		return nil, err
	}
	if b.BlockNum < 0 {
		return nil, cerr(MALFORMED_FORMAT, "negative block number")
	}
	if b.Difficulty, err = parseInt64(hdr[3], "difficulty"); err != nil {
		return nil, err
	}
	if b.WinningNonce, err = parseInt64(hdr[4], "winning nonce"); err != nil {
		return nil, err
	}
	if front[2] == "" {
		b.Transactions = []string{}
	} else {
		b.Transactions = strings.Split(front[2], TX_LIST_SEP)
	}

	cert, err := parseCert(rest)
	if err != nil {
		return nil, err
	}
	b.Certificate = cert

	b.BlockHash = back[0]
	b.MinerSignature = back[1]
	if b.MinerSignatureIndex, err = parseInt64(back[2], "miner signature index"); err != nil {
		return nil, err
	}
	if got := b.ComputeHash(); got != b.BlockHash {
		return nil, cerrf(HASH_MISMATCH, "declared %s, computed %s", b.BlockHash, got)
	}
	return b, nil
}
