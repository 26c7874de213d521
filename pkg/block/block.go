package block

import (
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

// Block is a mined block: its headers plus the transaction series it
// carries.
type Block struct {
	BlockHeaders Headers           `json:"block_headers"`
	TxSeries     []*tx.Transaction `json:"tx_series"`
}

// Hash computes keccak_hash(block), used to detect the genesis block
// and to dedupe a rebroadcast block against the current head.
func (b *Block) Hash() (string, error) {
	return crypto.KeccakHash(b)
}

// Number returns the block's height.
func (b *Block) Number() uint64 {
	return b.BlockHeaders.TruncatedHeaders.Number
}

// Difficulty returns the block's difficulty.
func (b *Block) Difficulty() uint64 {
	return b.BlockHeaders.TruncatedHeaders.Difficulty
}
