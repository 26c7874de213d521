package tx

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/state"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/trie"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

// Execute applies a single transaction's effects to st. Callers must
// have already validated the transaction (directly or as part of a
// series) before calling Execute.
func (t *Transaction) Execute(st *state.State) error {
	switch t.UnsignedBody.Data.TxType {
	case TypeMiningReward:
		return executeMiningReward(t, st)
	case TypeCreateAccount:
		return executeCreateAccount(t, st)
	case TypeTransact:
		return executeTransact(t, st)
	default:
		return fmt.Errorf("unknown transaction type %q", t.UnsignedBody.Data.TxType)
	}
}

func executeMiningReward(t *Transaction, st *state.State) error {
	to := *t.UnsignedBody.To
	acc := account.PublicAccount{Address: to, Balance: account.InitialBalance}
	if st.HasAccount(to) {
		var err error
		if acc, err = st.GetAccount(to); err != nil {
			return fmt.Errorf("mining reward recipient: %w", err)
		}
	}
	acc.Balance += t.UnsignedBody.Value
	return st.PutAccount(acc)
}

func executeCreateAccount(t *Transaction, st *state.State) error {
	if t.UnsignedBody.Data.AccountData == nil {
		return fmt.Errorf("create-account tx missing account_data")
	}
	return st.PutAccount(*t.UnsignedBody.Data.AccountData)
}

// executeTransact runs a value transfer plus, for a contract recipient,
// its VM code. Gas consumed by a called contract is deducted from the
// sender's refund and effectively burned: it is credited to neither
// the contract nor the miner.
func executeTransact(t *Transaction, st *state.State) error {
	fromAcct, err := st.GetAccount(*t.UnsignedBody.From)
	if err != nil {
		return fmt.Errorf("from account: %w", err)
	}
	toAcct, err := st.GetAccount(*t.UnsignedBody.To)
	if err != nil {
		return fmt.Errorf("to account: %w", err)
	}

	refund := t.UnsignedBody.GasLimit
	if toAcct.CodeHash != nil {
		storage := st.StorageTrie(toAcct.Address)
		gasUsed, runErr := runContract(toAcct, storage, st.ExecutionLimit())
		if runErr != nil {
			return fmt.Errorf("contract execution: %w", runErr)
		}
		if gasUsed > refund {
			refund = 0
		} else {
			refund -= gasUsed
		}
	}

	fromAcct.Balance -= t.UnsignedBody.Value
	fromAcct.Balance -= t.UnsignedBody.GasLimit
	fromAcct.Balance += refund
	toAcct.Balance += t.UnsignedBody.Value

	if err := st.PutAccount(fromAcct); err != nil {
		return err
	}
	return st.PutAccount(toAcct)
}

// runContract executes toAcct's code against its live storage trie,
// recovering a VM fault panic into a returned error.
func runContract(toAcct account.PublicAccount, storage *trie.Trie, executionLimit uint64) (gasUsed uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*vm.Fault); ok {
				err = f
				return
			}
			panic(r)
		}
	}()
	res := vm.Run(toAcct.Code, storage, executionLimit)
	return res.GasUsed, nil
}

// ExecuteSeries applies each transaction in txs to st, in order.
func ExecuteSeries(txs []*Transaction, st *state.State) error {
	for i, t := range txs {
		if err := t.Execute(st); err != nil {
			return fmt.Errorf("tx %d (%s): %w", i, t.ID(), err)
		}
	}
	return nil
}
