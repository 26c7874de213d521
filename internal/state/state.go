// Package state holds the account state trie plus the per-contract
// storage tries that back contract-local persistent key-value storage.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/trie"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

// State pairs the state trie (address-hex -> serialised PublicAccount)
// with a per-contract storage trie map, created lazily on first write,
// and the VM instruction-step limit contract calls are executed under.
type State struct {
	StateTrie      *trie.Trie
	storage        map[types.Address]*trie.Trie
	executionLimit uint64
}

// New returns an empty State at the genesis root hash. A zero
// executionLimit falls back to vm.DefaultExecutionLimit.
func New(executionLimit uint64) *State {
	if executionLimit == 0 {
		executionLimit = vm.DefaultExecutionLimit
	}
	return &State{
		StateTrie:      trie.New(),
		storage:        make(map[types.Address]*trie.Trie),
		executionLimit: executionLimit,
	}
}

// ExecutionLimit returns the VM instruction-step bound contract calls
// against this state are run under.
func (s *State) ExecutionLimit() uint64 {
	return s.executionLimit
}

// PutAccount serialises acc into the state trie at its address and
// lazily creates its storage trie if it carries contract code.
func (s *State) PutAccount(acc account.PublicAccount) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	s.StateTrie.Put(acc.Address.String(), string(data))
	if acc.IsContract() {
		s.StorageTrie(acc.Address)
	}
	return nil
}

// GetAccount returns the account at addr. It returns an error if the
// account has not yet been created.
func (s *State) GetAccount(addr types.Address) (account.PublicAccount, error) {
	raw, ok := s.StateTrie.Get(addr.String())
	if !ok || raw == "" {
		return account.PublicAccount{}, fmt.Errorf("account %s does not exist", addr)
	}
	var acc account.PublicAccount
	if err := json.Unmarshal([]byte(raw), &acc); err != nil {
		return account.PublicAccount{}, fmt.Errorf("unmarshal account %s: %w", addr, err)
	}
	return acc, nil
}

// HasAccount reports whether addr has been created.
func (s *State) HasAccount(addr types.Address) bool {
	raw, ok := s.StateTrie.Get(addr.String())
	return ok && raw != ""
}

// StateRoot returns the state trie's current root hash.
func (s *State) StateRoot() string {
	return s.StateTrie.RootHash
}

// StorageTrie returns addr's per-contract storage trie, creating it on
// first access.
func (s *State) StorageTrie(addr types.Address) *trie.Trie {
	if t, ok := s.storage[addr]; ok {
		return t
	}
	t := trie.New()
	s.storage[addr] = t
	return t
}

// StorageTries returns the full contract-address -> storage-trie map,
// used to serve GET /storage_trie.
func (s *State) StorageTries() map[types.Address]*trie.Trie {
	return s.storage
}

// Clone returns a deep copy of State, used to dry-run a candidate
// transaction series or block without mutating the live state.
func (s *State) Clone() *State {
	clone := &State{
		StateTrie:      s.StateTrie.Clone(),
		storage:        make(map[types.Address]*trie.Trie, len(s.storage)),
		executionLimit: s.executionLimit,
	}
	for addr, t := range s.storage {
		clone.storage[addr] = t.Clone()
	}
	return clone
}
