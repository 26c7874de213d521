package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/state"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

// Validation errors.
var (
	ErrInvalidSignature    = errors.New("transaction signature invalid")
	ErrInsufficientBalance = errors.New("transaction exceeds sender balance")
	ErrInsufficientGas     = errors.New("gas_limit below contract gas required")
	ErrWrongRewardValue    = errors.New("mining reward value mismatch")
)

// Validate checks a single transaction against st. It never mutates st:
// when the recipient of a Transact carries code, that code is dry-run
// against a cloned copy of its storage trie purely to learn gas_used.
func (t *Transaction) Validate(st *state.State) error {
	switch t.UnsignedBody.Data.TxType {
	case TypeMiningReward:
		return validateMiningReward(t)
	case TypeCreateAccount:
		// Static typing of the data union is the only check: account_data
		// is always present by construction.
		return nil
	case TypeTransact:
		return validateTransact(t, st)
	default:
		return fmt.Errorf("unknown transaction type %q", t.UnsignedBody.Data.TxType)
	}
}

func validateMiningReward(t *Transaction) error {
	if t.UnsignedBody.Value != MiningReward {
		return ErrWrongRewardValue
	}
	return nil
}

func validateTransact(t *Transaction, st *state.State) error {
	if t.UnsignedBody.From == nil {
		return fmt.Errorf("transact tx missing from")
	}

	bodyJSON, err := unsignedBodyJSON(t.UnsignedBody)
	if err != nil {
		return err
	}
	if !account.VerifySignature(bodyJSON, t.Signature, t.UnsignedBody.From.Bytes()) {
		return ErrInvalidSignature
	}

	fromAcct, err := st.GetAccount(*t.UnsignedBody.From)
	if err != nil {
		return fmt.Errorf("from account: %w", err)
	}
	if t.UnsignedBody.Value+t.UnsignedBody.GasLimit > fromAcct.Balance {
		return ErrInsufficientBalance
	}

	if t.UnsignedBody.To == nil {
		return nil
	}
	toAcct, err := st.GetAccount(*t.UnsignedBody.To)
	if err != nil || toAcct.CodeHash == nil {
		return nil
	}

	gasUsed, err := dryRunContract(toAcct, st)
	if err != nil {
		return fmt.Errorf("contract dry run: %w", err)
	}
	if t.UnsignedBody.GasLimit < gasUsed {
		return ErrInsufficientGas
	}
	return nil
}

// dryRunContract executes toAcct's code against a cloned copy of its
// storage trie, purely to learn gas_used; the clone discards any writes
// so validation never mutates live state.
func dryRunContract(toAcct account.PublicAccount, st *state.State) (gasUsed uint64, err error) {
	storageClone := st.StorageTrie(toAcct.Address).Clone()
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*vm.Fault); ok {
				err = f
				return
			}
			panic(r)
		}
	}()
	res := vm.Run(toAcct.Code, storageClone, st.ExecutionLimit())
	return res.GasUsed, nil
}

// ValidateSeries validates each transaction in order against st,
// failing fast on the first invalid one.
func ValidateSeries(txs []*Transaction, st *state.State) error {
	for i, t := range txs {
		if err := t.Validate(st); err != nil {
			return fmt.Errorf("tx %d (%s): %w", i, t.ID(), err)
		}
	}
	return nil
}
