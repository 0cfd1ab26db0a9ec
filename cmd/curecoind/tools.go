package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"curecoin.dev/node/consensus"
	"curecoin.dev/node/crypto"
	"curecoin.dev/node/node"
)

func newKeygenCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "keygen <dir>",
		Short: "Generate a key seed and its signing tree, and print the address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if _, err := os.Stat(filepath.Join(dir, node.SeedFileName)); err == nil {
				return fmt.Errorf("%s already holds a key", dir)
			}
			seed, err := crypto.GenerateSeed()
			if err != nil {
				return err
			}
			tree, err := crypto.GenerateTree(cmd.Context(), seed, depth)
			if err != nil {
				return err
			}
			if err := tree.Save(dir); err != nil {
				return err
			}
			if err := node.WriteSeedFile(dir, seed); err != nil {
				return err
			}
			addr, err := tree.Address()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), addr)
			return err
		},
	}
	cmd.Flags().IntVar(&depth, "depth", crypto.MinTreeDepth, "tree depth, 14 to 18")
	return cmd
}

func newCheckAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-address <address>",
		Short: "Check an address's prefix, charset and checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := strings.TrimSpace(args[0])
			if !crypto.IsAddressFormattedCorrectly(addr) {
				return errors.New("malformed address")
			}
			depth, _ := crypto.AddressDepth(addr)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ok depth=%d signatures=%d\n", depth, int64(1)<<depth)
			return err
		},
	}
}

type txSummary struct {
	Source         string             `json:"source"`
	InputAmount    uint64             `json:"input_amount"`
	Outputs        []consensus.Output `json:"outputs"`
	Fee            uint64             `json:"fee"`
	SignatureIndex int64              `json:"signature_index"`
}

func newVerifyTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-tx <transaction>",
		Short: "Parse a wire transaction and verify its signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := consensus.ValidateTransaction(nil, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), txSummary{
				Source:         tx.Source,
				InputAmount:    tx.InputAmount,
				Outputs:        tx.Outputs,
				Fee:            tx.Fee(),
				SignatureIndex: tx.SignatureIndex,
			})
		},
	}
}

type blockSummary struct {
	BlockNum          int64  `json:"block_num"`
	Timestamp         int64  `json:"timestamp"`
	PreviousBlockHash string `json:"previous_block_hash"`
	BlockHash         string `json:"block_hash"`
	Difficulty        int64  `json:"difficulty"`
	WinningNonce      int64  `json:"winning_nonce"`
	Miner             string `json:"miner"`
	LedgerHashBefore  string `json:"ledger_hash_before"`
	Transactions      int    `json:"transactions"`
	Valid             bool   `json:"valid"`
	Error             string `json:"error,omitempty"`
}

func newInspectBlockCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-block <file|->",
		Short: "Parse a raw block and run the checks that need no chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			b, err := consensus.ParseBlock(strings.TrimSpace(raw), nil)
			if err != nil {
				return err
			}
			s := blockSummary{
				BlockNum:          b.BlockNum,
				Timestamp:         b.Timestamp,
				PreviousBlockHash: b.PreviousBlockHash,
				BlockHash:         b.BlockHash,
				Difficulty:        b.Difficulty,
				WinningNonce:      b.WinningNonce,
				Miner:             b.Miner(),
				LedgerHashBefore:  b.LedgerHashBefore,
				Valid:             true,
			}
			for _, tx := range b.Transactions {
				if tx != "" {
					s.Transactions++
				}
			}
			rules := consensus.Rules{PoSWindow: cfg.PoSWindow}
			if err := rules.ValidateBlockStandalone(nil, b); err != nil {
				s.Valid = false
				s.Error = err.Error()
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name) // #nosec G304 -- operator-supplied path.
	return string(b), err
}

func newLedgerCmd(g *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print a persisted ledger file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				cfg, err := g.config(cmd)
				if err != nil {
					return err
				}
				path = node.LedgerPath(cfg.DataDir)
			}
			l, err := node.LoadLedger(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "last_block %d\n", l.LastBlockNum())
			for _, e := range l.Accounts() {
				_, _ = fmt.Fprintf(out, "%s balance=%d last_index=%d\n", e.Address, e.Balance, e.LastIndex)
			}
			_, err = fmt.Fprintf(out, "hash %s\n", l.Hash())
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "ledger file (default: <datadir>/ledger.dta)")
	return cmd
}
