// Package consensus implements proof-of-work mining and block validation.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// HashHexLength is the length, in hex characters, of a keccak_hash output
// and of the target hash derived from it.
const HashHexLength = 64

// MineRateMillis is the target time, in milliseconds, between blocks.
// Difficulty increases when a block arrives faster than this and
// decreases when it arrives slower.
const MineRateMillis uint64 = 13000

// Consensus errors.
var (
	ErrNilParent         = errors.New("consensus: nil parent block")
	ErrBadParentHash     = errors.New("consensus: parent block header hash doesn't match")
	ErrBadNumber         = errors.New("consensus: block number didn't increment by 1")
	ErrBadDifficultyJump = errors.New("consensus: difficulty difference between two blocks above 1")
	ErrInsufficientWork  = errors.New("consensus: nonce check failed")
)

// maxHashInt is 2^256 - 1, the value of a hash of all 'f' characters.
var maxHashInt = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// TargetHash computes the hash a mined block's candidate hash must fall
// below: maxHashInt / difficulty, rendered as a left-zero-padded 64
// character hex string so it can be compared lexicographically against
// a candidate hash of the same length.
func TargetHash(difficulty uint64) string {
	if difficulty == 0 {
		difficulty = 1
	}
	d := new(big.Int).SetUint64(difficulty)
	value := new(big.Int).Div(maxHashInt, d)
	hexValue := value.Text(16)
	if len(hexValue) >= HashHexLength {
		return hexValue[len(hexValue)-HashHexLength:]
	}
	return fmt.Sprintf("%0*s", HashHexLength, hexValue)
}

// AdjustDifficulty computes the difficulty for a block built on top of a
// parent with the given difficulty and timestamp. A block arriving more
// than MineRateMillis after its parent lowers difficulty by 1; any
// faster arrival raises it by 1. Difficulty never drops below 1.
func AdjustDifficulty(parentDifficulty, parentTimestamp, timestamp uint64) uint64 {
	var next uint64
	if timestamp-parentTimestamp > MineRateMillis {
		if parentDifficulty == 0 {
			return 1
		}
		next = parentDifficulty - 1
	} else {
		next = parentDifficulty + 1
	}
	if next < 1 {
		return 1
	}
	return next
}

// Mine searches for a nonce that makes CandidateHash(truncated, nonce)
// fall below the parent's target hash, producing the headers for the
// next block. txRoot and stateRoot must already reflect the block's
// transaction series and resulting state, since both are covered by the
// truncated header's hash. Mining stops early if ctx is cancelled.
func Mine(ctx context.Context, parent *block.Block, beneficiary types.Address, txRoot, stateRoot string) (*block.Headers, error) {
	if parent == nil {
		return nil, ErrNilParent
	}

	target := TargetHash(parent.Difficulty())
	parentHash, err := parent.BlockHeaders.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash parent headers: %w", err)
	}

	timestamp := uint64(time.Now().UnixMilli())
	truncated := block.TruncatedHeader{
		ParentHash:  parentHash,
		Beneficiary: beneficiary,
		Difficulty:  AdjustDifficulty(parent.Difficulty(), parent.BlockHeaders.TruncatedHeaders.Timestamp, timestamp),
		Number:      parent.Number() + 1,
		Timestamp:   timestamp,
		TxRoot:      txRoot,
		StateRoot:   stateRoot,
	}

	for i := 0; ; i++ {
		if i&0xFFF == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		nonce, err := block.NewNonce()
		if err != nil {
			return nil, err
		}
		candidate, err := block.CandidateHash(&truncated, nonce)
		if err != nil {
			return nil, fmt.Errorf("candidate hash: %w", err)
		}
		if candidate < target {
			return &block.Headers{TruncatedHeaders: truncated, Nonce: nonce}, nil
		}
	}
}

// ValidateBlock checks this against parent according to consensus
// rules: genesis is valid by definition, otherwise the parent hash must
// chain correctly, the block number must increment by exactly 1, the
// difficulty may move by at most 1, and the nonce must satisfy the
// parent's target hash.
func ValidateBlock(genesis, parent, this *block.Block) error {
	thisHash, err := this.Hash()
	if err != nil {
		return fmt.Errorf("hash block: %w", err)
	}
	genesisHash, err := genesis.Hash()
	if err != nil {
		return fmt.Errorf("hash genesis: %w", err)
	}
	if thisHash == genesisHash {
		return nil
	}

	parentHash, err := parent.BlockHeaders.Hash()
	if err != nil {
		return fmt.Errorf("hash parent headers: %w", err)
	}
	if parentHash != this.BlockHeaders.TruncatedHeaders.ParentHash {
		return ErrBadParentHash
	}

	if this.Number() != parent.Number()+1 {
		return ErrBadNumber
	}

	diff, parentDiff := this.Difficulty(), parent.Difficulty()
	if diff > parentDiff+1 || (parentDiff > diff && parentDiff-diff > 1) {
		return ErrBadDifficultyJump
	}

	target := TargetHash(parent.Difficulty())
	candidate, err := block.CandidateHash(&this.BlockHeaders.TruncatedHeaders, this.BlockHeaders.Nonce)
	if err != nil {
		return fmt.Errorf("candidate hash: %w", err)
	}
	if candidate >= target {
		return ErrInsufficientWork
	}

	return nil
}
