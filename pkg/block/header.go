// Package block defines the block header, the truncated header used for
// mining and hashing, and the block container.
package block

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// TruncatedHeader carries every header field except the mining nonce.
// It is held fixed across an entire mining attempt: only the nonce
// varies between candidate hashes.
type TruncatedHeader struct {
	ParentHash  string        `json:"parent_hash"`
	Beneficiary types.Address `json:"beneficiary"`
	Difficulty  uint64        `json:"difficulty"`
	Number      uint64        `json:"number"`
	Timestamp   uint64        `json:"timestamp"`
	TxRoot      string        `json:"tx_root"`
	StateRoot   string        `json:"state_root"`
}

// Hash computes keccak_hash(truncated_headers).
func (h *TruncatedHeader) Hash() (string, error) {
	return crypto.KeccakHash(h)
}

// Headers wraps a TruncatedHeader with the nonce that satisfies the
// proof-of-work target.
type Headers struct {
	TruncatedHeaders TruncatedHeader `json:"truncated_block_headers"`
	Nonce            string          `json:"nonce"`
}

// Hash computes keccak_hash(block_headers), the value the next block's
// parent_hash must equal.
func (h *Headers) Hash() (string, error) {
	return crypto.KeccakHash(h)
}

// NewNonce draws a random 128-bit nonce, hex-encoded.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CandidateHash computes keccak_hash(keccak_hash(truncated_headers) ++
// nonce), the value compared against the mining target.
func CandidateHash(truncated *TruncatedHeader, nonce string) (string, error) {
	headerHash, err := truncated.Hash()
	if err != nil {
		return "", err
	}
	return crypto.HashConcat(headerHash, nonce)
}
