package node

// ancestry answers miner lookups for the chain ending at top: canonical blocks
// up to the fork point, branch blocks above it.
type ancestry struct {
	canonical []*blockNode
	branch    map[int64]*blockNode
	top       int64
}

func (a ancestry) MinerAt(n int64) (string, bool) {
	if n < 0 || n > a.top {
		return "", false
	}
	if node, ok := a.branch[n]; ok {
		return node.block.Miner(), true
	}
	if n < int64(len(a.canonical)) {
		return a.canonical[n].block.Miner(), true
	}
	return "", false
}

func (c *Chain) historyAt(parent *blockNode) ancestry {
	a := ancestry{canonical: c.canonical, top: parent.height}
	for n := parent; n != nil && !c.isCanonical(n); n = n.parent {
		if a.branch == nil {
			a.branch = make(map[int64]*blockNode)
		}
		a.branch[n.height] = n
	}
	return a
}
