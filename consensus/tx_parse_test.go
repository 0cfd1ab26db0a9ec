package consensus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"curecoin.dev/node/crypto"
	"curecoin.dev/node/crypto/cryptotest"
)

func TestParseTransaction_ScenarioTwoOutputs(t *testing.T) {
	a := cryptotest.NewKey(t, "alice")
	b := cryptotest.NewKey(t, "bob")
	c := cryptotest.NewKey(t, "carol")

	tx := mustSignTx(t, a, 500, 0, Output{b.Address, 300}, Output{c.Address, 150})
	wire := tx.String()
	require.True(t, strings.HasPrefix(wire, a.Address+";500;"+b.Address+";300;"+c.Address+";150;"))
	require.True(t, strings.HasSuffix(wire, ";0"))

	got, err := ValidateTransaction(crypto.MerkleVerifier{}, wire)
	require.NoError(t, err)
	require.Equal(t, a.Address, got.Source)
	require.Equal(t, uint64(500), got.InputAmount)
	require.Equal(t, []Output{{b.Address, 300}, {c.Address, 150}}, got.Outputs)
	require.Equal(t, int64(0), got.SignatureIndex)
	require.Equal(t, uint64(50), got.Fee())
	require.Equal(t, wire, got.String())
}

func TestParseTransaction_Malformed(t *testing.T) {
	a := cryptotest.NewKey(t, "alice")
	b := cryptotest.NewKey(t, "bob")
	sig := "x:y,z"
	cases := map[string]string{
		"empty":           "",
		"too few":         a.Address + ";5;" + sig + ";0",
		"odd fields":      a.Address + ";5;" + b.Address + ";5;" + sig,
		"bad source":      "C1NOPE;5;" + b.Address + ";5;" + sig + ";0",
		"bad dest":        a.Address + ";5;C1NOPE;5;" + sig + ";0",
		"outputs > input": a.Address + ";5;" + b.Address + ";6;" + sig + ";0",
		"zero output":     a.Address + ";5;" + b.Address + ";0;" + sig + ";0",
		"negative amount": a.Address + ";-5;" + b.Address + ";1;" + sig + ";0",
		"text amount":     a.Address + ";five;" + b.Address + ";1;" + sig + ";0",
		"negative index":  a.Address + ";5;" + b.Address + ";1;" + sig + ";-1",
		"text index":      a.Address + ";5;" + b.Address + ";1;" + sig + ";x",
		"empty signature": a.Address + ";5;" + b.Address + ";1;;0",
		"output overflow": a.Address + ";5;" + b.Address + ";18446744073709551615;" + b.Address + ";1;" + sig + ";0",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTransaction(text)
			require.Error(t, err)
			require.Equal(t, MALFORMED_FORMAT, CodeOf(err))
		})
	}
}

func TestValidateTransaction_SignatureInvalid(t *testing.T) {
	a := cryptotest.NewKey(t, "alice")
	b := cryptotest.NewKey(t, "bob")
	tx := mustSignTx(t, a, 100, 3, Output{b.Address, 60})

	tampered := *tx
	tampered.Outputs = []Output{{b.Address, 61}}
	_, err := ValidateTransaction(nil, tampered.String())
	require.Equal(t, SIGNATURE_INVALID, CodeOf(err))

	wrongIndex := *tx
	wrongIndex.SignatureIndex = 4
	_, err = ValidateTransaction(nil, wrongIndex.String())
	require.Equal(t, SIGNATURE_INVALID, CodeOf(err))
}

func TestSignTransactionRejectsEmptyOutputs(t *testing.T) {
	a := cryptotest.NewKey(t, "alice")
	_, err := SignTransaction(a.Seed, a.Tree, 10, nil, 0)
	require.Equal(t, MALFORMED_FORMAT, CodeOf(err))
}
