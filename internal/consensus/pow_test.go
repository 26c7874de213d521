package consensus

import (
	"context"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
)

func genesisBlock(t *testing.T) *block.Block {
	t.Helper()
	return &block.Block{
		BlockHeaders: block.Headers{
			TruncatedHeaders: block.TruncatedHeader{
				ParentHash: "NONE",
				Difficulty: 1,
				Number:     0,
				Timestamp:  1,
			},
			Nonce: "00",
		},
	}
}

func mineNext(t *testing.T, parent *block.Block) *block.Block {
	t.Helper()
	acct, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}
	headers, err := Mine(context.Background(), parent, acct.PublicAccount.Address, "", "")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	return &block.Block{BlockHeaders: *headers}
}

func TestTargetHash_DifficultyOne(t *testing.T) {
	got := TargetHash(1)
	want := strings.Repeat("f", HashHexLength)
	if got != want {
		t.Fatalf("TargetHash(1) = %s, want %s", got, want)
	}
}

func TestTargetHash_Length(t *testing.T) {
	got := TargetHash(1000)
	if len(got) != HashHexLength {
		t.Fatalf("TargetHash(1000) length = %d, want %d", len(got), HashHexLength)
	}
}

func TestAdjustDifficulty_SpeedsUpWhenFast(t *testing.T) {
	got := AdjustDifficulty(5, 1000, 1000+MineRateMillis-1)
	if got != 6 {
		t.Fatalf("AdjustDifficulty(fast) = %d, want 6", got)
	}
}

func TestAdjustDifficulty_SlowsDownWhenSlow(t *testing.T) {
	got := AdjustDifficulty(5, 1000, 1000+MineRateMillis+1)
	if got != 4 {
		t.Fatalf("AdjustDifficulty(slow) = %d, want 4", got)
	}
}

func TestAdjustDifficulty_NeverBelowOne(t *testing.T) {
	got := AdjustDifficulty(1, 1000, 1000+MineRateMillis+1)
	if got != 1 {
		t.Fatalf("AdjustDifficulty(min) = %d, want 1", got)
	}
}

func TestMineProducesValidBlock(t *testing.T) {
	genesis := genesisBlock(t)
	mined := mineNext(t, genesis)

	if err := ValidateBlock(genesis, genesis, mined); err != nil {
		t.Fatalf("ValidateBlock: %v", err)
	}
	if mined.Number() != 1 {
		t.Fatalf("Number() = %d, want 1", mined.Number())
	}
}

func TestValidateBlock_GenesisIsAlwaysValid(t *testing.T) {
	genesis := genesisBlock(t)
	if err := ValidateBlock(genesis, genesis, genesis); err != nil {
		t.Fatalf("ValidateBlock(genesis): %v", err)
	}
}

func TestValidateBlock_RejectsBadParentHash(t *testing.T) {
	genesis := genesisBlock(t)
	mined := mineNext(t, genesis)
	mined.BlockHeaders.TruncatedHeaders.ParentHash = "this-is-clearly-wrong"

	if err := ValidateBlock(genesis, genesis, mined); err != ErrBadParentHash {
		t.Fatalf("ValidateBlock = %v, want ErrBadParentHash", err)
	}
}

func TestValidateBlock_RejectsBadNumber(t *testing.T) {
	genesis := genesisBlock(t)
	mined := mineNext(t, genesis)
	mined.BlockHeaders.TruncatedHeaders.Number = 5

	if err := ValidateBlock(genesis, genesis, mined); err != ErrBadNumber {
		t.Fatalf("ValidateBlock = %v, want ErrBadNumber", err)
	}
}

func TestValidateBlock_RejectsDifficultyJump(t *testing.T) {
	genesis := genesisBlock(t)
	mined := mineNext(t, genesis)
	mined.BlockHeaders.TruncatedHeaders.Difficulty += 5

	if err := ValidateBlock(genesis, genesis, mined); err != ErrBadDifficultyJump {
		t.Fatalf("ValidateBlock = %v, want ErrBadDifficultyJump", err)
	}
}

func TestValidator_ValidateBlock(t *testing.T) {
	genesis := genesisBlock(t)
	v := NewValidator(genesis)
	mined := mineNext(t, genesis)

	if err := v.ValidateBlock(genesis, mined); err != nil {
		t.Fatalf("Validator.ValidateBlock: %v", err)
	}
}
