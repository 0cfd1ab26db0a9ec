package consensus

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"

	"curecoin.dev/node/crypto"
)

// Certificate is the proof artifact a block is mined against. Blocks consume it
// through this interface only.
type Certificate interface {
	RedeemAddress() string
	MaxNonce() int64
	BlockNum() int64
	// FullCertificate is the exact text embedded in the block payload.
	FullCertificate() string
	// ScoreAtNonce is non-negative; work mode requires it to reach WorkTarget.
	ScoreAtNonce(nonce int64) int64
	ValidateCertificate() bool
}

// CertificateParser turns the certificate text of a raw block back into a Certificate.
type CertificateParser func(text string) (Certificate, error)

const certFieldCount = 6

// SignedCertificate is a certificate self-signed by its redeem address. Text form:
//
//	{redeem:data:maxNonce:authority:blockNum:prevHash},{signature},{signatureIndex}
type SignedCertificate struct {
	Redeem         string
	Data           string
	Max            int64
	Authority      string
	Num            int64
	PrevHash       string
	Signature      string
	SignatureIndex int64
}

var _ Certificate = (*SignedCertificate)(nil)

func (c *SignedCertificate) RedeemAddress() string { return c.Redeem }
func (c *SignedCertificate) MaxNonce() int64       { return c.Max }
func (c *SignedCertificate) BlockNum() int64       { return c.Num }

// Body is the signed part of the certificate, without braces.
func (c *SignedCertificate) Body() string {
	return strings.Join([]string{
		c.Redeem,
		c.Data,
		strconv.FormatInt(c.Max, 10),
		c.Authority,
		strconv.FormatInt(c.Num, 10),
		c.PrevHash,
	}, ":")
}

func (c *SignedCertificate) FullCertificate() string {
	return "{" + c.Body() + "},{" + c.Signature + "},{" + strconv.FormatInt(c.SignatureIndex, 10) + "}"
}

func (c *SignedCertificate) ScoreAtNonce(nonce int64) int64 {
	sum := sha256.Sum256([]byte(c.Body() + ":" + strconv.FormatInt(nonce, 10)))
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}

func (c *SignedCertificate) ValidateCertificate() bool {
	if !crypto.IsAddressFormattedCorrectly(c.Redeem) || c.Max <= 0 || c.Num < 0 {
		return false
	}
	for _, f := range []string{c.Data, c.Authority, c.PrevHash} {
		if !certFieldOK(f) {
			return false
		}
	}
	return crypto.VerifyMerkleSignature(c.Body(), c.Signature, c.Redeem, c.SignatureIndex)
}

// Sign fills in the self-signature using the redeem address's key.
func (c *SignedCertificate) Sign(seed crypto.KeySeed, tree *crypto.MerkleTree, index int64) error {
	sig, err := crypto.Sign(c.Body(), seed, tree, index)
	if err != nil {
		return err
	}
	c.Signature = sig
	c.SignatureIndex = index
	return nil
}

func certFieldOK(s string) bool {
	return !strings.ContainsAny(s, ":,{}*;")
}

// ParseSignedCertificate is the CertificateParser for SignedCertificate text.
func ParseSignedCertificate(text string) (Certificate, error) {
	groups, err := splitBraceGroups(text, 3)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(groups[0], ":")
	if len(fields) != certFieldCount {
		return nil, cerrf(MALFORMED_FORMAT, "certificate has %d fields", len(fields))
	}
	maxNonce, err := parseInt64(fields[2], "certificate max nonce")
	if err != nil {
		return nil, err
	}
	num, err := parseInt64(fields[4], "certificate block number")
	if err != nil {
		return nil, err
	}
	idx, err := parseInt64(groups[2], "certificate signature index")
	if err != nil {
		return nil, err
	}
	return &SignedCertificate{
		Redeem:         fields[0],
		Data:           fields[1],
		Max:            maxNonce,
		Authority:      fields[3],
		Num:            num,
		PrevHash:       fields[5],
		Signature:      groups[1],
		SignatureIndex: idx,
	}, nil
}

// splitBraceGroups splits "{a},{b},..." into exactly n group bodies. Group bodies
// must not contain braces.
func splitBraceGroups(text string, n int) ([]string, error) {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil, cerr(MALFORMED_FORMAT, "expected brace groups")
	}
	groups := strings.Split(text[1:len(text)-1], "},{")
	if len(groups) != n {
		return nil, cerrf(MALFORMED_FORMAT, "expected %d brace groups, got %d", n, len(groups))
	}
	for _, g := range groups {
		if strings.ContainsAny(g, "{}") {
			return nil, cerr(MALFORMED_FORMAT, "nested brace in group")
		}
	}
	return groups, nil
}
