package node

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"curecoin.dev/node/consensus"
	"curecoin.dev/node/crypto"
)

const (
	ledgerFileName = "ledger.dta"

	// DefaultReplayPassCap bounds ApplyBatch.
	DefaultReplayPassCap = 10000
)

type Account struct {
	Balance   uint64
	LastIndex int64
}

var emptyAccount = Account{Balance: 0, LastIndex: -1}

// AccountEntry is one row of the ledger in address order.
type AccountEntry struct {
	Address string
	Account
}

// Ledger maps addresses to balances and last used signature indexes. It is not
// safe for concurrent use; Chain serializes access.
type Ledger struct {
	accounts     map[string]Account
	lastBlockNum int64
}

func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[string]Account), lastBlockNum: -1}
}

func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, ledgerFileName)
}

func (l *Ledger) account(addr string) Account {
	if a, ok := l.accounts[addr]; ok {
		return a
	}
	return emptyAccount
}

func (l *Ledger) Balance(addr string) uint64 {
	return l.account(addr).Balance
}

// LastSignatureIndex is -1 for an address that never signed.
func (l *Ledger) LastSignatureIndex(addr string) int64 {
	return l.account(addr).LastIndex
}

// LastBlockNum is the number of the last block applied, -1 when none.
func (l *Ledger) LastBlockNum() int64 {
	return l.lastBlockNum
}

func (l *Ledger) SetLastBlockNum(n int64) {
	l.lastBlockNum = n
}

func (l *Ledger) Len() int {
	return len(l.accounts)
}

// Accounts returns every non-empty account sorted by address.
func (l *Ledger) Accounts() []AccountEntry {
	out := make([]AccountEntry, 0, len(l.accounts))
	for addr, a := range l.accounts {
		out = append(out, AccountEntry{Address: addr, Account: a})
	}
	slices.SortFunc(out, func(a, b AccountEntry) int { return strings.Compare(a.Address, b.Address) })
	return out
}

func (l *Ledger) Clone() *Ledger {
	out := &Ledger{accounts: make(map[string]Account, len(l.accounts)), lastBlockNum: l.lastBlockNum}
	for k, v := range l.accounts {
		out.accounts[k] = v
	}
	return out
}

// commit writes touched accounts back, dropping those that returned to the
// empty state so apply followed by reverse leaves no trace.
func (l *Ledger) commit(touched map[string]Account) {
	for addr, a := range touched {
		if a == emptyAccount {
			delete(l.accounts, addr)
			continue
		}
		l.accounts[addr] = a
	}
}

func (l *Ledger) touch(touched map[string]Account, addr string) Account {
	if a, ok := touched[addr]; ok {
		return a
	}
	a := l.account(addr)
	touched[addr] = a
	return a
}

// Apply moves funds for tx. On any error the ledger is unchanged.
func (l *Ledger) Apply(v crypto.Verifier, tx *consensus.Transaction) error {
	if tx == nil {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "nil transaction")
	}
	if !crypto.IsAddressFormattedCorrectly(tx.Source) {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "source address "+tx.Source)
	}
	if len(tx.Outputs) == 0 {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "no outputs")
	}
	for _, o := range tx.Outputs {
		if !crypto.IsAddressFormattedCorrectly(o.Address) {
			return consensus.NewError(consensus.MALFORMED_FORMAT, "output address "+o.Address)
		}
	}
	total, err := tx.TotalOutput()
	if err != nil {
		return err
	}
	if total > tx.InputAmount {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "outputs exceed input")
	}
	src := l.account(tx.Source)
	if src.LastIndex+1 != tx.SignatureIndex {
		return consensus.NewError(consensus.SIGNATURE_INDEX_OUT_OF_ORDER,
			fmt.Sprintf("%s: index %d, expected %d", tx.Source, tx.SignatureIndex, src.LastIndex+1))
	}
	if err := consensus.VerifyTransaction(v, tx); err != nil {
		return err
	}
	if src.Balance < tx.InputAmount {
		return consensus.NewError(consensus.INSUFFICIENT_BALANCE,
			fmt.Sprintf("%s: balance %d, input %d", tx.Source, src.Balance, tx.InputAmount))
	}

	touched := make(map[string]Account, len(tx.Outputs)+1)
	src = l.touch(touched, tx.Source)
	src.Balance -= tx.InputAmount
	src.LastIndex = tx.SignatureIndex
	touched[tx.Source] = src
	for _, o := range tx.Outputs {
		dst := l.touch(touched, o.Address)
		if dst.Balance > ^uint64(0)-o.Amount {
			return consensus.NewError(consensus.MALFORMED_FORMAT, "balance overflow for "+o.Address)
		}
		dst.Balance += o.Amount
		touched[o.Address] = dst
	}
	l.commit(touched)
	return nil
}

// Reverse undoes a transaction that was the last one applied for its source.
// Every check runs before anything is mutated.
func (l *Ledger) Reverse(tx *consensus.Transaction) error {
	if tx == nil {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "nil transaction")
	}
	if last := l.LastSignatureIndex(tx.Source); last != tx.SignatureIndex {
		return consensus.NewError(consensus.SIGNATURE_INDEX_OUT_OF_ORDER,
			fmt.Sprintf("%s: reversing index %d, last applied %d", tx.Source, tx.SignatureIndex, last))
	}
	touched := make(map[string]Account, len(tx.Outputs)+1)
	src := l.touch(touched, tx.Source)
	if src.Balance > ^uint64(0)-tx.InputAmount {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "balance overflow for "+tx.Source)
	}
	src.Balance += tx.InputAmount
	src.LastIndex = tx.SignatureIndex - 1
	touched[tx.Source] = src
	for _, o := range tx.Outputs {
		dst := l.touch(touched, o.Address)
		if dst.Balance < o.Amount {
			return consensus.NewError(consensus.INSUFFICIENT_BALANCE,
				fmt.Sprintf("%s: cannot debit %d back", o.Address, o.Amount))
		}
		dst.Balance -= o.Amount
		touched[o.Address] = dst
	}
	l.commit(touched)
	return nil
}

// CreditReward applies the implicit unsigned coinbase: amount plus one
// signature-count increment for miner.
func (l *Ledger) CreditReward(miner string, amount uint64) error {
	if !crypto.IsAddressFormattedCorrectly(miner) {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "miner address "+miner)
	}
	a := l.account(miner)
	if a.Balance > ^uint64(0)-amount {
		return consensus.NewError(consensus.MALFORMED_FORMAT, "balance overflow for "+miner)
	}
	a.Balance += amount
	a.LastIndex++
	l.commit(map[string]Account{miner: a})
	return nil
}

func (l *Ledger) ReverseReward(miner string, amount uint64) error {
	a := l.account(miner)
	if a.Balance < amount {
		return consensus.NewError(consensus.INSUFFICIENT_BALANCE,
			fmt.Sprintf("%s: cannot take back reward %d", miner, amount))
	}
	if a.LastIndex < 0 {
		return consensus.NewError(consensus.SIGNATURE_INDEX_OUT_OF_ORDER, miner+": no reward to reverse")
	}
	a.Balance -= amount
	a.LastIndex--
	l.commit(map[string]Account{miner: a})
	return nil
}

// ApplyBatch applies txs in whatever order their dependencies allow. Entries are
// queued per source in signature-index order; each pass drains every queue head
// that applies. A pass without progress, or more than maxPasses passes, fails with
// UNRESOLVABLE_LEDGER_STATE and the ledger is rolled back. applied is the order
// in which the transactions took effect.
func (l *Ledger) ApplyBatch(v crypto.Verifier, txs []*consensus.Transaction, maxPasses int) (applied []*consensus.Transaction, passes int, err error) {
	if maxPasses <= 0 {
		maxPasses = DefaultReplayPassCap
	}
	queues := make(map[string][]*consensus.Transaction)
	var order []string
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if _, ok := queues[tx.Source]; !ok {
			order = append(order, tx.Source)
		}
		queues[tx.Source] = append(queues[tx.Source], tx)
	}
	for _, src := range order {
		slices.SortStableFunc(queues[src], func(a, b *consensus.Transaction) int {
			switch {
			case a.SignatureIndex < b.SignatureIndex:
				return -1
			case a.SignatureIndex > b.SignatureIndex:
				return 1
			}
			return 0
		})
	}

	remaining := 0
	for _, q := range queues {
		remaining += len(q)
	}
	applied = make([]*consensus.Transaction, 0, remaining)
	var lastErr error
	for remaining > 0 {
		passes++
		if passes > maxPasses {
			lastErr = fmt.Errorf("pass cap %d exceeded", maxPasses)
			break
		}
		progress := false
		for _, src := range order {
			q := queues[src]
			for len(q) > 0 {
				if err := l.Apply(v, q[0]); err != nil {
					lastErr = err
					break
				}
				applied = append(applied, q[0])
				q = q[1:]
				remaining--
				progress = true
			}
			queues[src] = q
		}
		if !progress {
			break
		}
	}
	if remaining == 0 {
		return applied, passes, nil
	}

	for i := len(applied) - 1; i >= 0; i-- {
		if rerr := l.Reverse(applied[i]); rerr != nil {
			return nil, passes, errors.Join(
				consensus.NewError(consensus.UNRESOLVABLE_LEDGER_STATE, "rollback failed"), rerr)
		}
	}
	msg := fmt.Sprintf("%d of %d transactions cannot apply", remaining, len(applied)+remaining)
	if lastErr != nil {
		msg += ": " + lastErr.Error()
	}
	return nil, passes, consensus.NewError(consensus.UNRESOLVABLE_LEDGER_STATE, msg)
}

// Hash is the upper-case hex SHA-256 over "address:balance:lastIndex\n" for
// every account in address order.
func (l *Ledger) Hash() string {
	h := sha256.New()
	for _, e := range l.Accounts() {
		fmt.Fprintf(h, "%s:%d:%d\n", e.Address, e.Balance, e.LastIndex)
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Save writes the ledger file: the last block number, then one
// address:balance:signatureCount line per account.
func (l *Ledger) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatInt(l.lastBlockNum, 10))
	buf.WriteByte('\n')
	for _, e := range l.Accounts() {
		fmt.Fprintf(&buf, "%s:%d:%d\n", e.Address, e.Balance, e.LastIndex)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes(), 0o600)
}

// LoadLedger reads a file written by Save. A missing file yields an empty ledger.
func LoadLedger(path string) (*Ledger, error) {
	raw, err := readFileByPath(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewLedger(), nil
	}
	if err != nil {
		return nil, err
	}
	l := NewLedger()
	sc := bufio.NewScanner(bytes.NewReader(raw))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if line == 1 {
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ledger %s: block number: %w", path, err)
			}
			l.lastBlockNum = n
			continue
		}
		if text == "" {
			continue
		}
		parts := strings.Split(text, ":")
		if len(parts) != 3 || !crypto.IsAddressFormattedCorrectly(parts[0]) {
			return nil, fmt.Errorf("ledger %s line %d: malformed entry", path, line)
		}
		bal, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger %s line %d: balance: %w", path, line, err)
		}
		idx, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || idx < -1 {
			return nil, fmt.Errorf("ledger %s line %d: bad signature count", path, line)
		}
		if _, dup := l.accounts[parts[0]]; dup {
			return nil, fmt.Errorf("ledger %s line %d: duplicate address", path, line)
		}
		if a := (Account{Balance: bal, LastIndex: idx}); a != emptyAccount {
			l.accounts[parts[0]] = a
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if line == 0 {
		return nil, fmt.Errorf("ledger %s: empty file", path)
	}
	return l, nil
}

// SetAccount overwrites one account.
func (l *Ledger) SetAccount(addr string, a Account) {
	l.commit(map[string]Account{addr: a})
}
