// Package trie implements a character-indexed radix trie over hex/decimal
// strings. It backs both the account state trie (address-hex -> serialised
// PublicAccount) and per-contract storage tries (decimal key -> decimal
// value).
package trie

import (
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
)

// Node is a single trie node: an optional string value and a map from
// the next character to the child node holding it.
type Node struct {
	Value    string           `json:"value"`
	Children map[string]*Node `json:"child_map"`
}

func newNode() *Node {
	return &Node{Value: "", Children: make(map[string]*Node)}
}

func cloneNode(n *Node) *Node {
	c := &Node{Value: n.Value, Children: make(map[string]*Node, len(n.Children))}
	for k, v := range n.Children {
		c.Children[k] = cloneNode(v)
	}
	return c
}

// Trie is a character trie with a root hash recomputed after every mutation.
type Trie struct {
	Head     *Node  `json:"head"`
	RootHash string `json:"root_hash"`
}

// New returns an empty trie with its root hash initialised.
func New() *Trie {
	t := &Trie{Head: newNode()}
	t.generateRootHash()
	return t
}

// generateRootHash recomputes RootHash as keccak_hash(Head).
func (t *Trie) generateRootHash() {
	h, err := crypto.KeccakHash(t.Head)
	if err != nil {
		// Node is always JSON-serialisable (plain strings and maps).
		panic("trie: head node failed to marshal: " + err.Error())
	}
	t.RootHash = h
}

// Get walks the trie one character at a time and returns the value stored
// at the node addressed by key, or ok=false if no such path exists.
func (t *Trie) Get(key string) (string, bool) {
	node := t.Head
	for _, c := range key {
		child, ok := node.Children[string(c)]
		if !ok {
			return "", false
		}
		node = child
	}
	return node.Value, true
}

// Put walks the trie one character at a time, creating missing nodes along
// the way, sets the value at the addressed node, and regenerates the root
// hash.
func (t *Trie) Put(key, value string) {
	node := t.Head
	for _, c := range key {
		ch := string(c)
		child, ok := node.Children[ch]
		if !ok {
			child = newNode()
			node.Children[ch] = child
		}
		node = child
	}
	node.Value = value
	t.generateRootHash()
}

// Clone returns a deep copy of the trie, used for dry-run validation
// (VM execution, transaction series replay) against a disposable copy of
// state.
func (t *Trie) Clone() *Trie {
	return &Trie{Head: cloneNode(t.Head), RootHash: t.RootHash}
}
