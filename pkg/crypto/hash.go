// Package crypto provides cryptographic primitives for klingnet-chain.
package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the raw Keccak-256 digest of data.
func Keccak256(data []byte) types.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// sortCharactersDescending serialises v to JSON, then sorts its characters
// in descending order and rejoins them. This is the canonicalisation step
// ahead of keccak_hash: it makes the hash insensitive to key order while
// remaining sensitive to the value's character multiset.
func sortCharactersDescending(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for hashing: %w", err)
	}
	runes := []rune(string(b))
	sort.Slice(runes, func(i, j int) bool { return runes[i] > runes[j] })
	return string(runes), nil
}

// KeccakHash implements keccak_hash(x): serialise x to JSON, sort its
// characters in descending order, Keccak-256 the result, and hex-encode
// to a lowercase 64-character string. This is the hash used for header
// hashes, trie root hashes, and mining target comparisons.
func KeccakHash(v interface{}) (string, error) {
	s, err := sortCharactersDescending(v)
	if err != nil {
		return "", err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// KeccakHashString is KeccakHash specialised to a string input.
func KeccakHashString(s string) (string, error) {
	return KeccakHash(s)
}

// HashConcat hashes the concatenation of two hex strings, used for
// double-keccak mining target comparisons: keccak_hash(header_hash ++ nonce).
func HashConcat(a, b string) (string, error) {
	return KeccakHash(a + b)
}
