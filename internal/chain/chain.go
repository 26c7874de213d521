// Package chain implements the blockchain state machine: genesis
// construction, block validation and application, mining, and
// whole-chain replacement during a fork resolution.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/consensus"
	"github.com/Klingon-tech/klingnet-chain/internal/state"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Chain errors.
var (
	ErrEmptyCandidateChain = errors.New("chain: candidate chain is empty")
	ErrGenesisMismatch     = errors.New("chain: candidate chain has a different genesis block")
	ErrBadStateRoot        = errors.New("chain: block's state_root does not match the root computed by replaying its transactions")
)

// Chain is the single mutex-free state machine for one node: the
// account state, the persisted block history, and the fixed genesis
// block new candidates are validated against. Callers (internal/node)
// serialize access with their own lock — Chain itself assumes it is
// never called concurrently.
type Chain struct {
	state     *state.State
	blocks    *BlockStore
	genesis   *block.Block
	tip       *block.Block
	validator *consensus.Validator
}

// New opens (or initializes) a chain backed by db. A fresh database is
// seeded with a new genesis block; an existing database has its state
// rebuilt by replaying every stored block from genesis to the tip.
// executionLimit bounds VM steps for contract calls executed against
// this chain's state; zero falls back to vm.DefaultExecutionLimit.
func New(db storage.DB, executionLimit uint64) (*Chain, error) {
	blocks := NewBlockStore(db)

	tipHeight, found, err := blocks.TipHeight()
	if err != nil {
		return nil, fmt.Errorf("read tip height: %w", err)
	}

	if !found {
		genesis, err := newGenesisBlock()
		if err != nil {
			return nil, fmt.Errorf("build genesis: %w", err)
		}
		if err := blocks.PutBlock(genesis); err != nil {
			return nil, fmt.Errorf("store genesis: %w", err)
		}
		if err := blocks.SetTipHeight(0); err != nil {
			return nil, fmt.Errorf("set genesis tip: %w", err)
		}
		return &Chain{
			state:     state.New(executionLimit),
			blocks:    blocks,
			genesis:   genesis,
			tip:       genesis,
			validator: consensus.NewValidator(genesis),
		}, nil
	}

	genesis, err := blocks.GetBlockByHeight(0)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}

	st := state.New(executionLimit)
	var tip *block.Block
	for h := uint64(0); h <= tipHeight; h++ {
		blk, err := blocks.GetBlockByHeight(h)
		if err != nil {
			return nil, fmt.Errorf("load block %d: %w", h, err)
		}
		if h > 0 {
			if err := tx.ExecuteSeries(blk.TxSeries, st); err != nil {
				return nil, fmt.Errorf("replay block %d: %w", h, err)
			}
		}
		tip = blk
	}

	return &Chain{
		state:     st,
		blocks:    blocks,
		genesis:   genesis,
		tip:       tip,
		validator: consensus.NewValidator(genesis),
	}, nil
}

// Tip returns the current chain head.
func (c *Chain) Tip() *block.Block { return c.tip }

// Height returns the current chain head's block number.
func (c *Chain) Height() uint64 { return c.tip.Number() }

// Genesis returns the chain's fixed genesis block.
func (c *Chain) Genesis() *block.Block { return c.genesis }

// State returns the live account state. Mutating it outside ProcessBlock
// or Mine bypasses consensus checks and must not be done.
func (c *Chain) State() *state.State { return c.state }

// Blocks returns every block from genesis to the current tip, in order.
func (c *Chain) Blocks() ([]*block.Block, error) {
	out := make([]*block.Block, 0, c.tip.Number()+1)
	for h := uint64(0); h <= c.tip.Number(); h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return nil, fmt.Errorf("load block %d: %w", h, err)
		}
		out = append(out, blk)
	}
	return out, nil
}

// ProcessBlock validates blk against the current tip and, on success,
// applies it: its transaction series is dry-run against a clone of the
// live state, the clone's resulting root is checked against blk's
// claimed state_root, and only then is the clone promoted to the live
// state. Returns blk's transaction series so the caller can clear them
// from its mempool.
func (c *Chain) ProcessBlock(blk *block.Block) ([]*tx.Transaction, error) {
	if err := c.validator.ValidateBlock(c.tip, blk); err != nil {
		return nil, fmt.Errorf("validate block %d: %w", blk.Number(), err)
	}

	cloned := c.state.Clone()
	if err := tx.ValidateSeries(blk.TxSeries, cloned); err != nil {
		return nil, fmt.Errorf("validate tx series for block %d: %w", blk.Number(), err)
	}
	if err := tx.ExecuteSeries(blk.TxSeries, cloned); err != nil {
		return nil, fmt.Errorf("execute tx series for block %d: %w", blk.Number(), err)
	}
	if cloned.StateRoot() != blk.BlockHeaders.TruncatedHeaders.StateRoot {
		return nil, ErrBadStateRoot
	}

	if err := c.blocks.PutBlock(blk); err != nil {
		return nil, fmt.Errorf("store block %d: %w", blk.Number(), err)
	}
	if err := c.blocks.SetTipHeight(blk.Number()); err != nil {
		return nil, fmt.Errorf("set tip to block %d: %w", blk.Number(), err)
	}

	c.state = cloned
	c.tip = blk
	return blk.TxSeries, nil
}

// Mine assembles a new block on top of the current tip from pending,
// plus a synthetic mining-reward transaction crediting beneficiary,
// searches for a satisfying nonce, and applies the result exactly as
// ProcessBlock would. The pending transactions are not removed from any
// mempool here — the caller does that once Mine returns, using the
// block's TxSeries.
func (c *Chain) Mine(ctx context.Context, beneficiary types.Address, pending []*tx.Transaction) (*block.Block, error) {
	reward, err := tx.Build(nil, nil, 0, 0, &beneficiary)
	if err != nil {
		return nil, fmt.Errorf("build mining reward tx: %w", err)
	}

	series := make([]*tx.Transaction, 0, len(pending)+1)
	series = append(series, pending...)
	series = append(series, reward)

	cloned := c.state.Clone()
	if err := tx.ValidateSeries(series, cloned); err != nil {
		return nil, fmt.Errorf("validate pending tx series: %w", err)
	}
	if err := tx.ExecuteSeries(series, cloned); err != nil {
		return nil, fmt.Errorf("execute pending tx series: %w", err)
	}

	txTrie, err := tx.BuildTxTrie(series)
	if err != nil {
		return nil, fmt.Errorf("build tx trie: %w", err)
	}

	headers, err := consensus.Mine(ctx, c.tip, beneficiary, txTrie.RootHash, cloned.StateRoot())
	if err != nil {
		return nil, fmt.Errorf("mine: %w", err)
	}
	blk := &block.Block{BlockHeaders: *headers, TxSeries: series}

	if err := c.blocks.PutBlock(blk); err != nil {
		return nil, fmt.Errorf("store mined block %d: %w", blk.Number(), err)
	}
	if err := c.blocks.SetTipHeight(blk.Number()); err != nil {
		return nil, fmt.Errorf("set tip to mined block %d: %w", blk.Number(), err)
	}

	c.state = cloned
	c.tip = blk
	return blk, nil
}

// ReplaceChain validates candidate from its (fixed) genesis block
// onward and, only if every block validates against its predecessor and
// its transactions replay to the claimed state_root, atomically swaps
// it in as the live chain and state. A partially-valid candidate never
// touches the live chain.
func (c *Chain) ReplaceChain(candidate []*block.Block) error {
	if len(candidate) == 0 {
		return ErrEmptyCandidateChain
	}

	candidateGenesisHash, err := candidate[0].Hash()
	if err != nil {
		return fmt.Errorf("hash candidate genesis: %w", err)
	}
	genesisHash, err := c.genesis.Hash()
	if err != nil {
		return fmt.Errorf("hash local genesis: %w", err)
	}
	if candidateGenesisHash != genesisHash {
		return ErrGenesisMismatch
	}

	st := state.New(c.state.ExecutionLimit())
	for i, blk := range candidate {
		if i == 0 {
			continue
		}
		parent := candidate[i-1]
		if err := consensus.ValidateBlock(c.genesis, parent, blk); err != nil {
			return fmt.Errorf("block %d: %w", blk.Number(), err)
		}
		if err := tx.ValidateSeries(blk.TxSeries, st); err != nil {
			return fmt.Errorf("block %d tx series: %w", blk.Number(), err)
		}
		if err := tx.ExecuteSeries(blk.TxSeries, st); err != nil {
			return fmt.Errorf("block %d tx series: %w", blk.Number(), err)
		}
		if st.StateRoot() != blk.BlockHeaders.TruncatedHeaders.StateRoot {
			return fmt.Errorf("block %d: %w", blk.Number(), ErrBadStateRoot)
		}
	}

	for _, blk := range candidate {
		if err := c.blocks.PutBlock(blk); err != nil {
			return fmt.Errorf("store block %d: %w", blk.Number(), err)
		}
	}
	tipBlk := candidate[len(candidate)-1]
	if err := c.blocks.SetTipHeight(tipBlk.Number()); err != nil {
		return fmt.Errorf("set tip to block %d: %w", tipBlk.Number(), err)
	}

	c.state = st
	c.tip = tipBlk
	return nil
}
