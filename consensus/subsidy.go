package consensus

const (
	// BLOCK_REWARD is credited to a block's miner after its transactions apply.
	// Fees are not credited.
	BLOCK_REWARD uint64 = 100

	// POS_WINDOW is both the minimum height of a stake-mode block and the number
	// of preceding blocks its miner must not have mined.
	POS_WINDOW int64 = 500

	// COINBASE_COUNTERPARTY names the implicit reward sender in address history.
	COINBASE_COUNTERPARTY = "COINBASE"
)
