// Package tx implements the three transaction kinds (account creation,
// value transfer, mining reward), their signing, validation, and
// execution against state.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Type identifies the transaction kind.
type Type string

const (
	TypeCreateAccount Type = "CreateAccount"
	TypeTransact      Type = "Transact"
	TypeMiningReward  Type = "MiningReward"
)

// MiningReward is the fixed value paid by a mining-reward transaction.
const MiningReward = 50

// MiningRewardGasLimit is the gas_limit carried by synthetic
// mining-reward transactions.
const MiningRewardGasLimit = 10

// Data is the tagged payload distinguishing the three transaction kinds.
// Only CreateAccount carries AccountData.
type Data struct {
	TxType      Type                   `json:"tx_type"`
	AccountData *account.PublicAccount `json:"account_data,omitempty"`
}

// UnsignedBody is the signed-over portion of a transaction.
type UnsignedBody struct {
	ID       uuid.UUID      `json:"id"`
	From     *types.Address `json:"from,omitempty"`
	To       *types.Address `json:"to,omitempty"`
	Value    uint64         `json:"value"`
	GasLimit uint64         `json:"gas_limit"`
	Data     Data           `json:"data"`
}

// Transaction pairs an unsigned body with its (optional) signature.
// MiningReward transactions are unsigned; CreateAccount and Transact
// transactions are signed.
type Transaction struct {
	UnsignedBody UnsignedBody `json:"unsigned_tx"`
	Signature    []byte       `json:"signature,omitempty"`
}

// transactionJSON mirrors Transaction with a hex-encoded signature.
type transactionJSON struct {
	UnsignedBody UnsignedBody `json:"unsigned_tx"`
	Signature    string       `json:"signature,omitempty"`
}

// MarshalJSON encodes the transaction with a hex-encoded signature.
func (t Transaction) MarshalJSON() ([]byte, error) {
	j := transactionJSON{UnsignedBody: t.UnsignedBody}
	if t.Signature != nil {
		j.Signature = hex.EncodeToString(t.Signature)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a transaction with a hex-encoded signature.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var j transactionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	t.UnsignedBody = j.UnsignedBody
	if j.Signature != "" {
		b, err := hex.DecodeString(j.Signature)
		if err != nil {
			return fmt.Errorf("invalid signature hex: %w", err)
		}
		t.Signature = b
	}
	return nil
}

// ID returns the transaction's unique id.
func (t *Transaction) ID() uuid.UUID {
	return t.UnsignedBody.ID
}

// Hash computes keccak_hash(tx), the key under which the transaction is
// entered into the transaction trie.
func (t *Transaction) Hash() (string, error) {
	return crypto.KeccakHash(t)
}

// unsignedBodyJSON returns the canonical JSON of the unsigned body: the
// exact bytes that are signed and verified over.
func unsignedBodyJSON(body UnsignedBody) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal unsigned body: %w", err)
	}
	return b, nil
}
