// Package miner runs the periodic block-production loop on top of a
// chain.
package miner

import (
	"context"
	"time"

	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	"github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Miner periodically mines a block from the node's chain and mempool.
type Miner struct {
	chain       *chain.Chain
	pool        *mempool.Pool
	beneficiary types.Address
	interval    time.Duration

	// withLock wraps each mining attempt so the caller's single coarse
	// mutex guards chain and mempool mutation for its whole duration.
	withLock func(func())

	// onMined is called after withLock has been released, once a block
	// has been applied and cleared from the pool — typically to
	// broadcast it, without holding the lock against the HTTP server or
	// P2P consumers for the duration of a network publish.
	onMined func(blk *block.Block)
}

// New creates a miner that produces a block from c and pool every
// interval, crediting beneficiary with the mining reward. withLock must
// run its argument with whatever mutex also guards c and pool — every
// Mine/ClearBlockTx pair happens inside one withLock call.
func New(c *chain.Chain, pool *mempool.Pool, beneficiary types.Address, interval time.Duration, withLock func(func()), onMined func(blk *block.Block)) *Miner {
	return &Miner{
		chain:       c,
		pool:        pool,
		beneficiary: beneficiary,
		interval:    interval,
		withLock:    withLock,
		onMined:     onMined,
	}
}

// Run mines blocks on a fixed interval until ctx is cancelled.
func (m *Miner) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mineOnce(ctx)
		}
	}
}

func (m *Miner) mineOnce(ctx context.Context) {
	var mined *block.Block
	m.withLock(func() {
		pending := m.pool.TxSeries()
		blk, err := m.chain.Mine(ctx, m.beneficiary, pending)
		if err != nil {
			log.Miner.Error().Err(err).Msg("mining attempt failed")
			return
		}
		m.pool.ClearBlockTx(blk.TxSeries)
		mined = blk
	})

	if mined == nil {
		return
	}

	log.Miner.Info().
		Uint64("number", mined.Number()).
		Int("tx_count", len(mined.TxSeries)).
		Msg("mined block")

	if m.onMined != nil {
		m.onMined(mined)
	}
}
