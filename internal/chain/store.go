package chain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
)

var blockPrefix = []byte("block/")
var tipKey = []byte("tip_height")

// BlockStore persists blocks by height in a key-value database.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore wraps db as a block store.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], height)
	return key
}

// PutBlock persists blk, keyed by its height.
func (s *BlockStore) PutBlock(blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("marshal block %d: %w", blk.Number(), err)
	}
	return s.db.Put(heightKey(blk.Number()), data)
}

// GetBlockByHeight loads the block stored at height.
func (s *BlockStore) GetBlockByHeight(height uint64) (*block.Block, error) {
	data, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("load block %d: %w", height, err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("unmarshal block %d: %w", height, err)
	}
	return &blk, nil
}

// SetTipHeight records the height of the current chain tip.
func (s *BlockStore) SetTipHeight(height uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	return s.db.Put(tipKey, buf)
}

// TipHeight returns the persisted tip height, or found=false on a fresh
// database.
func (s *BlockStore) TipHeight() (height uint64, found bool, err error) {
	data, err := s.db.Get(tipKey)
	if err != nil {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(data), true, nil
}
