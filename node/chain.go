package node

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"curecoin.dev/node/consensus"
	"curecoin.dev/node/crypto"
	"curecoin.dev/node/node/store"
)

type Decision string

const (
	DecisionAddedAsTip Decision = "ADDED_AS_TIP"
	DecisionAddedReorg Decision = "ADDED_REORG"
	DecisionAddedFork  Decision = "ADDED_FORK"
	DecisionQueued     Decision = "QUEUED"
)

// blockNode is one accepted block in the arena. applied is the order in which its
// transactions took effect while the node was canonical.
type blockNode struct {
	block    *consensus.Block
	hash     string
	parent   *blockNode
	height   int64
	children int
	txs      []*consensus.Transaction
	applied  []*consensus.Transaction
}

// ChainOptions wires a Chain to its collaborators. Nil fields disable the
// corresponding persistence or instrumentation.
type ChainOptions struct {
	Verifier   crypto.Verifier
	Logger     *zap.Logger
	Metrics    *Metrics
	Store      *store.DB
	BlockLog   *BlockLog
	LedgerPath string
	CertParser consensus.CertificateParser
}

// Chain tracks every block on the canonical chain and on forks within the fork
// window, and keeps the single ledger in step with the canonical chain.
type Chain struct {
	mu sync.RWMutex

	cfg        Config
	rules      consensus.Rules
	v          crypto.Verifier
	log        *zap.Logger
	metrics    *Metrics
	db         *store.DB
	blockLog   *BlockLog
	ledgerPath string
	parseCert  consensus.CertificateParser

	nodes     map[string]*blockNode
	tips      map[string]*blockNode
	canonical []*blockNode
	queue     []*consensus.Block
	queued    map[string]struct{}
	ledger    *Ledger
	halted    error
}

func NewChain(cfg Config, opts ChainOptions) (*Chain, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	v := opts.Verifier
	if v == nil {
		v = crypto.MerkleVerifier{}
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	parseCert := opts.CertParser
	if parseCert == nil {
		parseCert = consensus.ParseSignedCertificate
	}
	return &Chain{
		cfg:        cfg,
		rules:      consensus.Rules{PoSWindow: cfg.PoSWindow},
		v:          v,
		log:        moduleLogger(opts.Logger, "chain"),
		metrics:    m,
		db:         opts.Store,
		blockLog:   opts.BlockLog,
		ledgerPath: opts.LedgerPath,
		parseCert:  parseCert,
		nodes:      make(map[string]*blockNode),
		tips:       make(map[string]*blockNode),
		queued:     make(map[string]struct{}),
		ledger:     NewLedger(),
	}, nil
}

// AddBlock validates b and places it on the canonical chain, on a fork, or in
// the queue of blocks waiting for their parent. Queued blocks are retried after
// every successful addition.
func (c *Chain) AddBlock(b *consensus.Block) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.addBlock(b, false)
	c.observe(b, d, err)
	if err == nil && d != DecisionQueued {
		c.tryQueue(false)
	}
	c.refreshGauges()
	return d, err
}

// AddRawBlock parses the block wire form and adds it.
func (c *Chain) AddRawBlock(raw string) (Decision, error) {
	b, err := consensus.ParseBlock(raw, c.parseCert)
	if err != nil {
		c.metrics.observeRejected(err)
		return "", err
	}
	return c.AddBlock(b)
}

// TryQueue retries every queued block until a pass adds nothing and returns
// the number added.
func (c *Chain) TryQueue() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.tryQueue(false)
	c.refreshGauges()
	return n
}

func (c *Chain) addBlock(b *consensus.Block, replay bool) (Decision, error) {
	if c.halted != nil {
		return "", consensus.NewError(consensus.CHAIN_HALTED, c.halted.Error())
	}
	if b == nil {
		return "", consensus.NewError(consensus.MALFORMED_FORMAT, "nil block")
	}
	if !consensus.IsRecognizedMode(b.Difficulty) {
		return "", consensus.NewError(consensus.UNRECOGNIZED_MODE, fmt.Sprintf("difficulty %d", b.Difficulty))
	}
	c.pruneForks()
	if err := c.rules.ValidateBlockStandalone(c.v, b); err != nil {
		return "", err
	}
	if b.BlockNum > int64(len(c.canonical)) {
		return c.enqueue(b)
	}

	if len(c.nodes) == 0 {
		if b.BlockNum != 0 {
			return "", consensus.NewError(consensus.UNKNOWN_PLACEMENT, fmt.Sprintf("block %d before genesis", b.BlockNum))
		}
		return c.connect(b, nil, replay)
	}
	if _, ok := c.nodes[b.BlockHash]; ok {
		return "", consensus.NewError(consensus.DUPLICATE_BLOCK, b.BlockHash)
	}
	parent, ok := c.nodes[b.PreviousBlockHash]
	if !ok || parent.height+1 != b.BlockNum || !c.withinForkWindow(parent) {
		return "", consensus.NewError(consensus.UNKNOWN_PLACEMENT,
			fmt.Sprintf("block %d: no chain ends at or near %s", b.BlockNum, b.PreviousBlockHash))
	}
	if err := c.rules.CheckMinerHistory(b, c.historyAt(parent)); err != nil {
		return "", err
	}
	return c.connect(b, parent, replay)
}

// connect inserts b under parent (nil for genesis), updating the ledger when
// the canonical chain changes. Nothing is committed unless the ledger work and
// persistence both succeed.
func (c *Chain) connect(b *consensus.Block, parent *blockNode, replay bool) (Decision, error) {
	n := &blockNode{
		block:  b,
		hash:   b.BlockHash,
		parent: parent,
		height: b.BlockNum,
		txs:    blockTransactions(b),
	}

	var (
		decision Decision
		work     *Ledger
		applied  map[*blockNode][]*consensus.Transaction
		fork     *blockNode
	)
	switch {
	case parent == nil || parent == c.tip():
		decision = DecisionAddedAsTip
		work = c.ledger.Clone()
		txs, err := c.applyBlock(work, n)
		if err != nil {
			return "", c.ledgerFailure(err)
		}
		applied = map[*blockNode][]*consensus.Transaction{n: txs}
	case n.height+1 > int64(len(c.canonical)):
		decision = DecisionAddedReorg
		var err error
		work, applied, fork, err = c.reorgTo(n)
		if err != nil {
			return "", c.ledgerFailure(err)
		}
	default:
		decision = DecisionAddedFork
	}

	if err := c.persistBlock(n, replay); err != nil {
		return "", err
	}
	if work != nil && !replay {
		if err := c.saveSnapshot(work, n); err != nil {
			return "", err
		}
	}

	c.nodes[n.hash] = n
	if parent != nil {
		parent.children++
		delete(c.tips, parent.hash)
	}
	c.tips[n.hash] = n
	switch decision {
	case DecisionAddedAsTip:
		n.applied = applied[n]
		c.canonical = append(c.canonical, n)
		c.ledger = work
	case DecisionAddedReorg:
		depth := len(c.canonical) - 1 - int(fork.height)
		for _, old := range c.canonical[fork.height+1:] {
			old.applied = nil
		}
		for node, txs := range applied {
			node.applied = txs
		}
		c.canonical = append(c.canonical[:fork.height+1], pathFromAncestor(fork, n)...)
		c.ledger = work
		c.metrics.observeReorg(depth)
		c.log.Info("reorganized",
			zap.Int("depth", depth),
			zap.Int64("fork_height", fork.height),
			zap.String("tip", n.hash))
	}
	return decision, nil
}

// applyBlock runs n's transactions and reward against work and returns the
// order in which the transactions applied.
func (c *Chain) applyBlock(work *Ledger, n *blockNode) ([]*consensus.Transaction, error) {
	if c.cfg.VerifyLedgerHash {
		if got := work.Hash(); n.block.LedgerHashBefore != got {
			return nil, consensus.NewError(consensus.HASH_MISMATCH,
				fmt.Sprintf("block %d declares ledger %s, have %s", n.height, n.block.LedgerHashBefore, got))
		}
	}
	applied, passes, err := work.ApplyBatch(c.v, n.txs, c.cfg.ReplayPassCap)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", n.height, err)
	}
	if len(n.txs) > 0 {
		c.metrics.replayPasses.Observe(float64(passes))
	}
	if err := work.CreditReward(n.block.Miner(), c.cfg.BlockReward); err != nil {
		return nil, fmt.Errorf("block %d reward: %w", n.height, err)
	}
	work.SetLastBlockNum(n.height)
	return applied, nil
}

func (c *Chain) ledgerFailure(err error) error {
	if consensus.IsCode(err, consensus.UNRESOLVABLE_LEDGER_STATE) && c.cfg.HaltOnUnresolvable {
		c.halted = err
		c.metrics.halted.Set(1)
		c.log.Error("ledger cannot follow the chain, block acceptance halted", zap.Error(err))
	}
	return err
}

func blockTransactions(b *consensus.Block) []*consensus.Transaction {
	out := make([]*consensus.Transaction, 0, len(b.Transactions))
	for _, text := range b.Transactions {
		if text == "" {
			continue
		}
		// validated by ValidateBlockStandalone
		if tx, err := consensus.ParseTransaction(text); err == nil {
			out = append(out, tx)
		}
	}
	return out
}

func (c *Chain) tip() *blockNode {
	if len(c.canonical) == 0 {
		return nil
	}
	return c.canonical[len(c.canonical)-1]
}

func (c *Chain) isCanonical(n *blockNode) bool {
	return n.height >= 0 && n.height < int64(len(c.canonical)) && c.canonical[n.height] == n
}

// withinForkWindow reports whether parent is one of the last ForkWindow blocks
// of some chain.
func (c *Chain) withinForkWindow(parent *blockNode) bool {
	for _, t := range c.tips {
		n := t
		for i := int64(0); n != nil && i < c.cfg.ForkWindow; i++ {
			if n == parent {
				return true
			}
			n = n.parent
		}
	}
	return false
}

// pruneForks drops chains more than ForkWindow blocks shorter than the
// canonical one, back to where they branch off.
func (c *Chain) pruneForks() {
	floor := int64(len(c.canonical)) - c.cfg.ForkWindow
	for hash, t := range c.tips {
		if t.height+1 >= floor || c.isCanonical(t) {
			continue
		}
		delete(c.tips, hash)
		dropped := 0
		for n := t; n != nil && n.children == 0 && !c.isCanonical(n); n = n.parent {
			delete(c.nodes, n.hash)
			if n.parent != nil {
				n.parent.children--
			}
			if c.db != nil {
				if err := c.db.SetStatus(n.hash, store.BlockStatusOrphaned); err != nil {
					c.log.Warn("mark orphaned", zap.String("hash", n.hash), zap.Error(err))
				}
			}
			dropped++
		}
		c.log.Debug("pruned fork", zap.String("tip", hash), zap.Int64("height", t.height), zap.Int("blocks", dropped))
	}
}

func (c *Chain) enqueue(b *consensus.Block) (Decision, error) {
	if _, ok := c.queued[b.BlockHash]; ok {
		return DecisionQueued, nil
	}
	if len(c.queue) >= c.cfg.MaxQueuedBlocks {
		return "", consensus.NewError(consensus.UNKNOWN_PLACEMENT,
			fmt.Sprintf("block %d: queue full (%d blocks)", b.BlockNum, len(c.queue)))
	}
	c.queue = append(c.queue, b)
	c.queued[b.BlockHash] = struct{}{}
	return DecisionQueued, nil
}

func (c *Chain) tryQueue(replay bool) int {
	added := 0
	for len(c.queue) > 0 {
		pending := c.queue
		c.queue = nil
		clear(c.queued)
		slices.SortStableFunc(pending, func(a, b *consensus.Block) int {
			switch {
			case a.BlockNum < b.BlockNum:
				return -1
			case a.BlockNum > b.BlockNum:
				return 1
			}
			return 0
		})
		progress := false
		for _, b := range pending {
			d, err := c.addBlock(b, replay)
			switch {
			case consensus.IsCode(err, consensus.CHAIN_HALTED):
				c.queue = append(c.queue, b)
				c.queued[b.BlockHash] = struct{}{}
			case err != nil:
				c.log.Debug("dropping queued block",
					zap.Int64("block_num", b.BlockNum),
					zap.String("hash", b.BlockHash),
					zap.Error(err))
				c.metrics.observeRejected(err)
			case d != DecisionQueued:
				added++
				progress = true
				c.metrics.observeAccepted(d)
			}
		}
		if !progress || c.halted != nil {
			break
		}
	}
	return added
}

func (c *Chain) persistBlock(n *blockNode, replay bool) error {
	raw := n.block.RawBlock()
	if !replay && c.blockLog != nil {
		if err := c.blockLog.Append(raw); err != nil {
			return err
		}
	}
	if c.db == nil {
		return nil
	}
	prev := ""
	if n.parent != nil {
		prev = n.parent.hash
	}
	entry := store.BlockIndexEntry{
		Height:   uint64(n.height), // #nosec G115 -- heights are never negative once placed.
		PrevHash: prev,
		Miner:    n.block.Miner(),
		Status:   store.BlockStatusValid,
	}
	if err := c.db.PutBlock(n.hash, []byte(raw), entry); err != nil {
		return fmt.Errorf("store block %s: %w", n.hash, err)
	}
	return nil
}

// saveSnapshot writes the ledger file and the manifest for a new canonical tip.
func (c *Chain) saveSnapshot(l *Ledger, tip *blockNode) error {
	if c.ledgerPath != "" {
		if err := l.Save(c.ledgerPath); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
	}
	if c.db == nil || tip == nil {
		return nil
	}
	count, err := c.db.CountBlocks()
	if err != nil {
		return err
	}
	return c.db.SetManifest(&store.Manifest{
		SchemaVersion: store.SchemaVersionV1,
		Network:       c.cfg.Network,
		TipHash:       tip.hash,
		TipHeight:     uint64(tip.height), // #nosec G115 -- heights are never negative once placed.
		LedgerHash:    l.Hash(),
		BlockCount:    uint64(count), // #nosec G115 -- count is non-negative.
	})
}

// LoadFromLog rebuilds the chain and ledger by replaying the block log without
// appending to it, then writes a fresh ledger snapshot. It returns the number
// of blocks placed.
func (c *Chain) LoadFromLog(ctx context.Context) (int, error) {
	if c.blockLog == nil {
		return 0, errors.New("chain has no block log")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.nodes) > 0 {
		return 0, errors.New("chain already holds blocks")
	}

	var prior *Ledger
	if c.ledgerPath != "" {
		l, err := LoadLedger(c.ledgerPath)
		if err != nil {
			c.log.Warn("ignoring unreadable ledger file", zap.String("path", c.ledgerPath), zap.Error(err))
		} else {
			prior = l
		}
	}

	loaded := 0
	err := c.blockLog.Replay(ctx, func(line int, raw string) error {
		b, err := consensus.ParseBlock(raw, c.parseCert)
		if err != nil {
			c.log.Warn("skipping unparsable block record", zap.Int("line", line), zap.Error(err))
			return nil
		}
		d, err := c.addBlock(b, true)
		if err != nil {
			if c.halted != nil {
				return fmt.Errorf("block log line %d: %w", line, err)
			}
			c.log.Warn("skipping block record", zap.Int("line", line), zap.Error(err))
			return nil
		}
		if d != DecisionQueued {
			loaded++
		}
		return nil
	})
	if err != nil {
		c.refreshGauges()
		return loaded, err
	}
	loaded += c.tryQueue(true)
	c.refreshGauges()

	if prior != nil && prior.LastBlockNum() >= 0 && prior.Hash() != c.ledger.Hash() {
		c.log.Warn("ledger file disagrees with the block log, rewriting",
			zap.Int64("file_block", prior.LastBlockNum()),
			zap.Int64("log_block", c.ledger.LastBlockNum()))
	}
	if err := c.saveSnapshot(c.ledger, c.tip()); err != nil {
		return loaded, err
	}
	c.log.Info("chain loaded",
		zap.Int("blocks", loaded),
		zap.Int("length", len(c.canonical)),
		zap.Int("queued", len(c.queue)),
		zap.String("ledger_hash", c.ledger.Hash()))
	return loaded, nil
}

func (c *Chain) observe(b *consensus.Block, d Decision, err error) {
	if err != nil {
		c.metrics.observeRejected(err)
		if b != nil {
			c.log.Debug("block rejected",
				zap.Int64("block_num", b.BlockNum),
				zap.String("hash", b.BlockHash),
				zap.String("code", string(consensus.CodeOf(err))),
				zap.Error(err))
		}
		return
	}
	c.metrics.observeAccepted(d)
	c.log.Debug("block accepted",
		zap.Int64("block_num", b.BlockNum),
		zap.String("hash", b.BlockHash),
		zap.String("decision", string(d)))
}

func (c *Chain) refreshGauges() {
	c.metrics.height.Set(float64(len(c.canonical)))
	c.metrics.tips.Set(float64(len(c.tips)))
	c.metrics.queued.Set(float64(len(c.queue)))
	c.metrics.accounts.Set(float64(c.ledger.Len()))
}

// Block returns block n of the canonical chain.
func (c *Chain) Block(n int64) (*consensus.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n < 0 || n >= int64(len(c.canonical)) {
		return nil, false
	}
	return c.canonical[n].block, true
}

// BlockByHash looks in memory first, then in the store, so blocks on pruned
// forks remain retrievable.
func (c *Chain) BlockByHash(hash string) (*consensus.Block, bool, error) {
	c.mu.RLock()
	n, ok := c.nodes[hash]
	c.mu.RUnlock()
	if ok {
		return n.block, true, nil
	}
	if c.db == nil {
		return nil, false, nil
	}
	raw, ok, err := c.db.GetBlockBytes(hash)
	if err != nil || !ok {
		return nil, false, err
	}
	b, err := consensus.ParseBlock(string(raw), c.parseCert)
	if err != nil {
		return nil, false, fmt.Errorf("stored block %s: %w", hash, err)
	}
	return b, true, nil
}

// Length is the number of blocks on the canonical chain.
func (c *Chain) Length() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.canonical))
}

// Difficulty is the mode of the canonical tip, 0 before genesis.
func (c *Chain) Difficulty() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t := c.tip(); t != nil {
		return t.block.Difficulty
	}
	return 0
}

func (c *Chain) Balance(addr string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Balance(addr)
}

func (c *Chain) SignatureIndex(addr string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.LastSignatureIndex(addr)
}

func (c *Chain) LedgerHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Hash()
}

// Ledger returns a copy of the current ledger.
func (c *Chain) Ledger() *Ledger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Clone()
}

// Queued is the number of blocks waiting for their parent.
func (c *Chain) Queued() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.queue)
}

// Tips is the number of chains currently tracked, canonical included.
func (c *Chain) Tips() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tips)
}

// Halted returns the error that stopped block acceptance, or nil.
func (c *Chain) Halted() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.halted
}

// AddressHistoryEntry is a HistoryEntry tagged with the block it came from.
type AddressHistoryEntry struct {
	BlockNum int64
	consensus.HistoryEntry
}

// History lists every entry involving addr on the canonical chain, oldest first.
func (c *Chain) History(addr string) []AddressHistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []AddressHistoryEntry
	for _, n := range c.canonical {
		for e := range n.block.TransactionsInvolving(addr, c.cfg.BlockReward) {
			out = append(out, AddressHistoryEntry{BlockNum: n.height, HistoryEntry: e})
		}
	}
	return out
}
