package consensus

import (
	"strings"

	"curecoin.dev/node/crypto"
)

// ParseTransaction decodes the wire form and checks its structure. It does not
// verify the signature; see ValidateTransaction.
func ParseTransaction(text string) (*Transaction, error) {
	parts := strings.Split(text, TX_FIELD_SEP)
	if len(parts) < TX_MIN_FIELDS || len(parts)%2 != 0 {
		return nil, cerrf(MALFORMED_FORMAT, "transaction has %d fields", len(parts))
	}
	if !crypto.IsAddressFormattedCorrectly(parts[0]) {
		return nil, cerrf(MALFORMED_FORMAT, "source address %q", parts[0])
	}
	input, err := parseAmount(parts[1], "input amount")
	if err != nil {
		return nil, err
	}

	tx := &Transaction{Source: parts[0], InputAmount: input}
	body := parts[2 : len(parts)-2]
	tx.Outputs = make([]Output, 0, len(body)/2)
	for i := 0; i < len(body); i += 2 {
		if !crypto.IsAddressFormattedCorrectly(body[i]) {
			return nil, cerrf(MALFORMED_FORMAT, "output address %q", body[i])
		}
		amt, err := parseAmount(body[i+1], "output amount")
		if err != nil {
			return nil, err
		}
		if amt == 0 {
			return nil, cerr(MALFORMED_FORMAT, "zero output amount")
		}
		tx.Outputs = append(tx.Outputs, Output{Address: body[i], Amount: amt})
	}
	total, err := tx.TotalOutput()
	if err != nil {
		return nil, err
	}
	if total > input {
		return nil, cerrf(MALFORMED_FORMAT, "outputs %d exceed input %d", total, input)
	}

	tx.Signature = parts[len(parts)-2]
	if tx.Signature == "" {
		return nil, cerr(MALFORMED_FORMAT, "empty signature")
	}
	idx, err := parseInt64(parts[len(parts)-1], "signature index")
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, cerr(MALFORMED_FORMAT, "negative signature index")
	}
	tx.SignatureIndex = idx
	return tx, nil
}

// VerifyTransaction checks the signature of an already parsed transaction.
func VerifyTransaction(v crypto.Verifier, tx *Transaction) error {
	if tx == nil {
		return cerr(MALFORMED_FORMAT, "nil transaction")
	}
	if v == nil {
		v = crypto.MerkleVerifier{}
	}
	if !v.VerifyMerkleSignature(tx.Message(), tx.Signature, tx.Source, tx.SignatureIndex) {
		return cerrf(SIGNATURE_INVALID, "transaction from %s at index %d", tx.Source, tx.SignatureIndex)
	}
	return nil
}

// ValidateTransaction parses text and verifies its signature. Balances and
// signature ordering are the ledger's concern.
func ValidateTransaction(v crypto.Verifier, text string) (*Transaction, error) {
	tx, err := ParseTransaction(text)
	if err != nil {
		return nil, err
	}
	if err := VerifyTransaction(v, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// SignTransaction builds and signs a transaction spending from tree's address
// with leaf index. The caller owns index allocation.
func SignTransaction(seed crypto.KeySeed, tree *crypto.MerkleTree, input uint64, outputs []Output, index int64) (*Transaction, error) {
	source, err := tree.Address()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		Source:         source,
		InputAmount:    input,
		Outputs:        append([]Output(nil), outputs...),
		SignatureIndex: index,
	}
	if len(tx.Outputs) == 0 {
		return nil, cerr(MALFORMED_FORMAT, "no outputs")
	}
	sig, err := crypto.Sign(tx.Message(), seed, tree, index)
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	// Round trip through the parser so only wire-valid transactions leave here.
	return ParseTransaction(tx.String())
}
