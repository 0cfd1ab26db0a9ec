package consensus

import "iter"

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// HistoryEntry is the part of one transaction that concerns a single address.
type HistoryEntry struct {
	Counterparty string
	Amount       uint64
	Direction    Direction
}

// TransactionsInvolving yields the entries of b that send to or from address.
// When address mined b, one COINBASE entry of reward comes first. Transactions
// that do not parse are skipped. The sequence may be iterated any number of times.
func (b *Block) TransactionsInvolving(address string, reward uint64) iter.Seq[HistoryEntry] {
	return func(yield func(HistoryEntry) bool) {
		if address == "" {
			return
		}
		if b.Miner() == address {
			if !yield(HistoryEntry{Counterparty: COINBASE_COUNTERPARTY, Amount: reward, Direction: DirectionIn}) {
				return
			}
		}
		for _, text := range b.Transactions {
			if text == "" {
				continue
			}
			tx, err := ParseTransaction(text)
			if err != nil {
				continue
			}
			if tx.Source == address {
				for _, o := range tx.Outputs {
					if !yield(HistoryEntry{Counterparty: o.Address, Amount: o.Amount, Direction: DirectionOut}) {
						return
					}
				}
				continue
			}
			for _, o := range tx.Outputs {
				if o.Address != address {
					continue
				}
				if !yield(HistoryEntry{Counterparty: tx.Source, Amount: o.Amount, Direction: DirectionIn}) {
					return
				}
			}
		}
	}
}
