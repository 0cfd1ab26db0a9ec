package consensus

import (
	"strconv"
	"strings"
)

const (
	// TX_FIELD_SEP separates transaction fields on the wire.
	TX_FIELD_SEP = ";"
	// TX_MIN_FIELDS is source, input, one output pair, signature and index.
	TX_MIN_FIELDS = 6
)

type Output struct {
	Address string
	Amount  uint64
}

// Transaction moves InputAmount out of Source into Outputs. Whatever the outputs
// leave of the input is an implicit fee.
type Transaction struct {
	Source         string
	InputAmount    uint64
	Outputs        []Output
	Signature      string
	SignatureIndex int64
}

// Message is the signed part of the wire form: every field except the signature
// and its index.
func (t *Transaction) Message() string {
	var b strings.Builder
	b.WriteString(t.Source)
	b.WriteString(TX_FIELD_SEP)
	b.WriteString(strconv.FormatUint(t.InputAmount, 10))
	for _, o := range t.Outputs {
		b.WriteString(TX_FIELD_SEP)
		b.WriteString(o.Address)
		b.WriteString(TX_FIELD_SEP)
		b.WriteString(strconv.FormatUint(o.Amount, 10))
	}
	return b.String()
}

// String returns the transaction wire form.
func (t *Transaction) String() string {
	return t.Message() + TX_FIELD_SEP + t.Signature + TX_FIELD_SEP + strconv.FormatInt(t.SignatureIndex, 10)
}

func (t *Transaction) TotalOutput() (uint64, error) {
	var total uint64
	for _, o := range t.Outputs {
		var err error
		total, err = addUint64(total, o.Amount)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Fee is the part of the input not assigned to any output.
func (t *Transaction) Fee() uint64 {
	out, err := t.TotalOutput()
	if err != nil || out > t.InputAmount {
		return 0
	}
	return t.InputAmount - out
}
