package miner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
)

func TestMinerMinesOnTick(t *testing.T) {
	c, err := chain.New(storage.NewMemory(), 0)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	pool := mempool.New()
	beneficiary, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}

	var mu sync.Mutex
	withLock := func(f func()) { mu.Lock(); defer mu.Unlock(); f() }

	mined := make(chan *block.Block, 1)
	m := New(c, pool, beneficiary.PublicAccount.Address, 10*time.Millisecond, withLock, func(blk *block.Block) {
		mined <- blk
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go m.Run(ctx)

	select {
	case blk := <-mined:
		if blk.Number() != 1 {
			t.Fatalf("Number() = %d, want 1", blk.Number())
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for a mined block")
	}
}
