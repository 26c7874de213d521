package chain

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
)

// genesisParentHash marks a block as having no parent.
const genesisParentHash = "NONE"

// newGenesisBlock builds the chain's fixed starting block: difficulty
// 1, number 0, a timestamp 30 seconds in the past (so the first mined
// block's difficulty-adjustment window is never negative), and an
// empty transaction series. Its beneficiary is a throwaway account —
// genesis mints no reward, so the address is never looked up in state.
func newGenesisBlock() (*block.Block, error) {
	beneficiary, err := account.New(nil)
	if err != nil {
		return nil, fmt.Errorf("generate genesis beneficiary: %w", err)
	}

	truncated := block.TruncatedHeader{
		ParentHash:  genesisParentHash,
		Beneficiary: beneficiary.PublicAccount.Address,
		Difficulty:  1,
		Number:      0,
		Timestamp:   uint64(time.Now().Add(-30 * time.Second).UnixMilli()),
		TxRoot:      "",
		StateRoot:   "",
	}

	return &block.Block{
		BlockHeaders: block.Headers{
			TruncatedHeaders: truncated,
			Nonce:            "00",
		},
	}, nil
}
