package node

import (
	"errors"
	"fmt"

	"curecoin.dev/node/consensus"
)

// reorgTo computes the ledger for newTip becoming canonical. The old branch is
// reversed block by block down to the fork point (reward first, then
// transactions in reverse application order) and the new branch is applied
// upward. The current ledger is not touched; applied holds the application
// order for every block on the new branch.
func (c *Chain) reorgTo(newTip *blockNode) (work *Ledger, applied map[*blockNode][]*consensus.Transaction, fork *blockNode, err error) {
	oldTip := c.tip()
	fork = findForkPoint(oldTip, newTip)
	if fork == nil {
		return nil, nil, nil, consensus.NewError(consensus.UNKNOWN_PLACEMENT, "no common ancestor with the canonical chain")
	}

	work = c.ledger.Clone()
	for n := oldTip; n != fork; n = n.parent {
		if err := reverseBlock(work, n, c.cfg.BlockReward); err != nil {
			return nil, nil, nil, errors.Join(
				consensus.NewError(consensus.UNRESOLVABLE_LEDGER_STATE, fmt.Sprintf("reverse block %d", n.height)), err)
		}
		work.SetLastBlockNum(n.height - 1)
	}

	path := pathFromAncestor(fork, newTip)
	applied = make(map[*blockNode][]*consensus.Transaction, len(path))
	for _, n := range path {
		txs, err := c.applyBlock(work, n)
		if err != nil {
			return nil, nil, nil, err
		}
		applied[n] = txs
	}
	return work, applied, fork, nil
}

func reverseBlock(l *Ledger, n *blockNode, reward uint64) error {
	if err := l.ReverseReward(n.block.Miner(), reward); err != nil {
		return err
	}
	for i := len(n.applied) - 1; i >= 0; i-- {
		if err := l.Reverse(n.applied[i]); err != nil {
			return err
		}
	}
	return nil
}

func findForkPoint(a, b *blockNode) *blockNode {
	for a != nil && b != nil && a.height > b.height {
		a = a.parent
	}
	for a != nil && b != nil && b.height > a.height {
		b = b.parent
	}
	for a != nil && b != nil && a != b {
		a = a.parent
		b = b.parent
	}
	if a == nil || b == nil {
		return nil
	}
	return a
}

// pathFromAncestor returns the nodes from ancestor's child up to tip, ascending.
func pathFromAncestor(ancestor, tip *blockNode) []*blockNode {
	var path []*blockNode
	for n := tip; n != nil && n != ancestor; n = n.parent {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
