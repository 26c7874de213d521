package tx

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/pkg/trie"
)

// BuildTxTrie implements build_trie: a trie whose entries are
// keccak_hash(tx) -> json(tx), inserted in ascending order of tx id.
// The insertion order is significant — build_trie(txs).RootHash must be
// reproducible by any node given the same transaction set.
func BuildTxTrie(txs []*Transaction) (*trie.Trie, error) {
	ordered := make([]*Transaction, len(txs))
	copy(ordered, txs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID().String() < ordered[j].ID().String()
	})

	t := trie.New()
	for _, tx := range ordered {
		key, err := tx.Hash()
		if err != nil {
			return nil, fmt.Errorf("hash tx %s: %w", tx.ID(), err)
		}
		value, err := json.Marshal(tx)
		if err != nil {
			return nil, fmt.Errorf("marshal tx %s: %w", tx.ID(), err)
		}
		t.Put(key, string(value))
	}
	return t, nil
}
