package tx

import (
	"encoding/json"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/state"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

func mustAccount(t *testing.T, code []vm.Instr) *account.Account {
	t.Helper()
	a, err := account.New(code)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}
	return a
}

func TestBuildCreateAccountTx(t *testing.T) {
	acct := mustAccount(t, nil)
	txn, err := Build(acct, nil, 0, 100, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if txn.UnsignedBody.Data.TxType != TypeCreateAccount {
		t.Fatalf("TxType = %s, want CreateAccount", txn.UnsignedBody.Data.TxType)
	}
	if txn.UnsignedBody.From != nil || txn.UnsignedBody.To != nil {
		t.Fatal("CreateAccount tx must have nil from and to")
	}
	if txn.UnsignedBody.Data.AccountData == nil {
		t.Fatal("CreateAccount tx must carry account_data")
	}
}

func TestBuildTransactTx(t *testing.T) {
	sender := mustAccount(t, nil)
	recipient := mustAccount(t, nil)

	txn, err := Build(sender, &recipient.PublicAccount.Address, 50, 10, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if txn.UnsignedBody.Data.TxType != TypeTransact {
		t.Fatalf("TxType = %s, want Transact", txn.UnsignedBody.Data.TxType)
	}
	if txn.UnsignedBody.From == nil || *txn.UnsignedBody.From != sender.PublicAccount.Address {
		t.Fatal("Transact tx must be signed from the sender")
	}
	if txn.Signature == nil {
		t.Fatal("Transact tx must be signed")
	}
}

func TestBuildMiningRewardTx(t *testing.T) {
	beneficiary := mustAccount(t, nil)
	txn, err := Build(nil, nil, 0, 0, &beneficiary.PublicAccount.Address)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if txn.UnsignedBody.Data.TxType != TypeMiningReward {
		t.Fatalf("TxType = %s, want MiningReward", txn.UnsignedBody.Data.TxType)
	}
	if txn.UnsignedBody.Value != MiningReward {
		t.Fatalf("Value = %d, want %d", txn.UnsignedBody.Value, MiningReward)
	}
	if txn.Signature != nil {
		t.Fatal("MiningReward tx must be unsigned")
	}
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	sender := mustAccount(t, nil)
	recipient := mustAccount(t, nil)
	txn, err := Build(sender, &recipient.PublicAccount.Address, 10, 5, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := json.Marshal(txn)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Transaction
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID() != txn.ID() {
		t.Fatalf("id mismatch after round trip")
	}
	if string(decoded.Signature) != string(txn.Signature) {
		t.Fatal("signature mismatch after round trip")
	}
}

func TestBuildTxTrieDeterministic(t *testing.T) {
	sender := mustAccount(t, nil)
	recipient := mustAccount(t, nil)

	tx1, _ := Build(sender, &recipient.PublicAccount.Address, 1, 1, nil)
	tx2, _ := Build(sender, &recipient.PublicAccount.Address, 2, 1, nil)

	trieA, err := BuildTxTrie([]*Transaction{tx1, tx2})
	if err != nil {
		t.Fatalf("BuildTxTrie: %v", err)
	}
	trieB, err := BuildTxTrie([]*Transaction{tx2, tx1})
	if err != nil {
		t.Fatalf("BuildTxTrie: %v", err)
	}
	if trieA.RootHash != trieB.RootHash {
		t.Fatalf("tx trie root hash should not depend on input order: %s != %s", trieA.RootHash, trieB.RootHash)
	}
}

func TestExecuteCreateAccountCreditsInitialBalance(t *testing.T) {
	s := state.New(0)
	acct := mustAccount(t, nil)
	txn, err := Build(acct, nil, 0, 0, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := txn.Execute(s); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := s.GetAccount(acct.PublicAccount.Address)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Balance != account.InitialBalance {
		t.Fatalf("Balance = %d, want %d", got.Balance, account.InitialBalance)
	}
}

func TestExecuteTransactMovesValue(t *testing.T) {
	s := state.New(0)
	sender := mustAccount(t, nil)
	recipient := mustAccount(t, nil)

	for _, acct := range []*account.Account{sender, recipient} {
		create, err := Build(acct, nil, 0, 0, nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := create.Execute(s); err != nil {
			t.Fatalf("Execute create: %v", err)
		}
	}

	txn, err := Build(sender, &recipient.PublicAccount.Address, 100, 0, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := ValidateSeries([]*Transaction{txn}, s); err != nil {
		t.Fatalf("ValidateSeries: %v", err)
	}
	if err := txn.Execute(s); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	fromAcct, _ := s.GetAccount(sender.PublicAccount.Address)
	toAcct, _ := s.GetAccount(recipient.PublicAccount.Address)
	if fromAcct.Balance != account.InitialBalance-100 {
		t.Fatalf("sender balance = %d, want %d", fromAcct.Balance, account.InitialBalance-100)
	}
	if toAcct.Balance != account.InitialBalance+100 {
		t.Fatalf("recipient balance = %d, want %d", toAcct.Balance, account.InitialBalance+100)
	}
}

func TestExecuteMiningRewardCreditsBeneficiary(t *testing.T) {
	s := state.New(0)
	beneficiary := mustAccount(t, nil)
	create, err := Build(beneficiary, nil, 0, 0, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := create.Execute(s); err != nil {
		t.Fatalf("Execute create: %v", err)
	}

	reward, err := Build(nil, nil, 0, 0, &beneficiary.PublicAccount.Address)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := reward.Execute(s); err != nil {
		t.Fatalf("Execute reward: %v", err)
	}

	got, _ := s.GetAccount(beneficiary.PublicAccount.Address)
	if got.Balance != account.InitialBalance+MiningReward {
		t.Fatalf("Balance = %d, want %d", got.Balance, account.InitialBalance+MiningReward)
	}
}
