// Package account defines accounts and their public, state-trie-resident
// form.
package account

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

// InitialBalance is credited to every freshly created account.
const InitialBalance = 1000

// PublicAccount is the part of an account that lives in the state trie:
// address, balance, contract code (empty for plain accounts), and an
// optional code hash.
type PublicAccount struct {
	Address  types.Address `json:"address"`
	Balance  uint64        `json:"balance"`
	Code     []vm.Instr    `json:"code"`
	CodeHash *string       `json:"code_hash,omitempty"`
}

// IsContract reports whether the account carries contract code.
func (p *PublicAccount) IsContract() bool {
	return len(p.Code) > 0
}

// Account owns a secret key plus the public account it controls.
type Account struct {
	secretKey     *crypto.PrivateKey
	PublicAccount PublicAccount
}

// New creates a fresh account with a random keypair, the given code
// (empty for a plain account), InitialBalance, and a code_hash when
// code is non-empty.
func New(code []vm.Instr) (*Account, error) {
	sk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	var addr types.Address
	copy(addr[:], sk.PublicKey())

	codeHash, err := genCodeHash(addr, code)
	if err != nil {
		return nil, fmt.Errorf("generate code hash: %w", err)
	}

	return &Account{
		secretKey: sk,
		PublicAccount: PublicAccount{
			Address:  addr,
			Balance:  InitialBalance,
			Code:     code,
			CodeHash: codeHash,
		},
	}, nil
}

// FromSecretKey rebuilds an Account around an already-generated secret
// key, used to restore a node's miner identity across restarts. The
// returned PublicAccount carries InitialBalance and the given code, not
// the live on-chain balance; callers that need the live on-chain
// PublicAccount must read it back from state.
func FromSecretKey(sk *crypto.PrivateKey, code []vm.Instr) (*Account, error) {
	var addr types.Address
	copy(addr[:], sk.PublicKey())

	codeHash, err := genCodeHash(addr, code)
	if err != nil {
		return nil, fmt.Errorf("generate code hash: %w", err)
	}

	return &Account{
		secretKey: sk,
		PublicAccount: PublicAccount{
			Address:  addr,
			Balance:  InitialBalance,
			Code:     code,
			CodeHash: codeHash,
		},
	}, nil
}

// genCodeHash computes code_hash = keccak_hash(address ++ debug-form(code))
// when code is non-empty, else nil.
func genCodeHash(addr types.Address, code []vm.Instr) (*string, error) {
	if len(code) == 0 {
		return nil, nil
	}
	h, err := crypto.KeccakHash(fmt.Sprintf("%s%v", addr.String(), code))
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Sign signs data with the account's secret key over its Keccak-256 hash.
func (a *Account) Sign(data []byte) ([]byte, error) {
	hash := crypto.Keccak256(data)
	return a.secretKey.Sign(hash[:])
}

// PublicKeyBytes returns the account's compressed public key.
func (a *Account) PublicKeyBytes() []byte {
	return a.secretKey.PublicKey()
}

// VerifySignature verifies a signature over data's Keccak-256 hash
// against a compressed public key.
func VerifySignature(data, signature, publicKey []byte) bool {
	hash := crypto.Keccak256(data)
	return crypto.VerifySignature(hash[:], signature, publicKey)
}
