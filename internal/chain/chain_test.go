package chain

import (
	"context"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	c, err := New(storage.NewMemory(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewChainStartsAtGenesis(t *testing.T) {
	c := newTestChain(t)
	if c.Height() != 0 {
		t.Fatalf("Height() = %d, want 0", c.Height())
	}
	if c.Tip() != c.Genesis() {
		t.Fatal("fresh chain's tip should be its genesis block")
	}
}

func TestMineAppliesBlockAndAdvancesTip(t *testing.T) {
	c := newTestChain(t)
	beneficiary, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}

	blk, err := c.Mine(context.Background(), beneficiary.PublicAccount.Address, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if blk.Number() != 1 {
		t.Fatalf("Number() = %d, want 1", blk.Number())
	}
	if c.Height() != 1 {
		t.Fatalf("Height() = %d, want 1", c.Height())
	}

	got, err := c.State().GetAccount(beneficiary.PublicAccount.Address)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Balance != tx.MiningReward {
		t.Fatalf("beneficiary balance = %d, want %d", got.Balance, tx.MiningReward)
	}
}

func TestMineIncludesPendingTransactions(t *testing.T) {
	c := newTestChain(t)
	sender, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}
	beneficiary, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}

	create, err := tx.Build(sender, nil, 0, 0, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := c.Mine(context.Background(), beneficiary.PublicAccount.Address, []*tx.Transaction{create}); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if !c.State().HasAccount(sender.PublicAccount.Address) {
		t.Fatal("account creation tx from the pending set should have been applied")
	}
}

func TestProcessBlockRejectsBadParent(t *testing.T) {
	c := newTestChain(t)
	beneficiary, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}

	blk, err := c.Mine(context.Background(), beneficiary.PublicAccount.Address, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	c2 := newTestChain(t)
	if _, err := c2.ProcessBlock(blk); err == nil {
		t.Fatal("expected ProcessBlock to reject a block mined against a different tip")
	}
}

func TestBlocksReturnsFullHistory(t *testing.T) {
	c := newTestChain(t)
	beneficiary, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}
	if _, err := c.Mine(context.Background(), beneficiary.PublicAccount.Address, nil); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	blocks, err := c.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(Blocks()) = %d, want 2", len(blocks))
	}
}

func TestReplaceChainRejectsMismatchedGenesis(t *testing.T) {
	c1 := newTestChain(t)
	c2 := newTestChain(t)

	candidate, err := c2.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}
	if err := c1.ReplaceChain(candidate); err != ErrGenesisMismatch {
		t.Fatalf("ReplaceChain = %v, want ErrGenesisMismatch", err)
	}
}

func TestReplaceChainAcceptsAValidCandidate(t *testing.T) {
	c := newTestChain(t)
	beneficiary, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}
	if _, err := c.Mine(context.Background(), beneficiary.PublicAccount.Address, nil); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if _, err := c.Mine(context.Background(), beneficiary.PublicAccount.Address, nil); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	candidate, err := c.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}

	if err := c.ReplaceChain(candidate); err != nil {
		t.Fatalf("ReplaceChain: %v", err)
	}
	if c.Height() != 2 {
		t.Fatalf("Height() = %d, want 2", c.Height())
	}
}
