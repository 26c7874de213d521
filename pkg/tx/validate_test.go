package tx

import (
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/state"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

func createAndExecute(t *testing.T, s *state.State, acct *account.Account) {
	t.Helper()
	txn, err := Build(acct, nil, 0, 0, nil)
	if err != nil {
		t.Fatalf("Build create: %v", err)
	}
	if err := txn.Execute(s); err != nil {
		t.Fatalf("Execute create: %v", err)
	}
}

func TestValidateTransactRejectsBadSignature(t *testing.T) {
	s := state.New(0)
	sender := mustAccount(t, nil)
	recipient := mustAccount(t, nil)
	createAndExecute(t, s, sender)
	createAndExecute(t, s, recipient)

	txn, err := Build(sender, &recipient.PublicAccount.Address, 10, 0, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	txn.Signature[0] ^= 0xff

	if err := txn.Validate(s); err == nil {
		t.Fatal("expected signature validation failure")
	}
}

func TestValidateTransactRejectsInsufficientBalance(t *testing.T) {
	s := state.New(0)
	sender := mustAccount(t, nil)
	recipient := mustAccount(t, nil)
	createAndExecute(t, s, sender)
	createAndExecute(t, s, recipient)

	txn, err := Build(sender, &recipient.PublicAccount.Address, account.InitialBalance, 1, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := txn.Validate(s); err == nil {
		t.Fatal("expected insufficient-balance failure")
	}
}

func TestValidateMiningRewardWrongValue(t *testing.T) {
	beneficiary := mustAccount(t, nil)
	txn, err := Build(nil, nil, 0, 0, &beneficiary.PublicAccount.Address)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	txn.UnsignedBody.Value = 999
	if err := txn.Validate(nil); err == nil {
		t.Fatal("expected mining reward value mismatch")
	}
}

func TestValidateTransactContractRequiresEnoughGas(t *testing.T) {
	s := state.New(0)
	sender := mustAccount(t, nil)
	// PUSH 10, PUSH 5, ADD, PUSH 5, ADD, STOP costs 2 gas.
	code := []vm.Instr{
		vm.Push(), vm.Val(10),
		vm.Push(), vm.Val(5),
		{Op: vm.ADD},
		vm.Push(), vm.Val(5),
		{Op: vm.ADD},
		{Op: vm.STOP},
	}
	contract := mustAccount(t, code)
	createAndExecute(t, s, sender)
	createAndExecute(t, s, contract)

	enough, err := Build(sender, &contract.PublicAccount.Address, 0, 100, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := enough.Validate(s); err != nil {
		t.Fatalf("Validate with gas_limit=100: %v", err)
	}

	tooLow, err := Build(sender, &contract.PublicAccount.Address, 0, 1, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tooLow.Validate(s); err == nil {
		t.Fatal("expected insufficient-gas failure for gas_limit=1")
	}
}

func TestValidateDoesNotMutateStorageTrie(t *testing.T) {
	s := state.New(0)
	sender := mustAccount(t, nil)
	code := []vm.Instr{
		vm.Push(), vm.Val(20),
		vm.Push(), vm.Val(123),
		{Op: vm.STORE},
		{Op: vm.STOP},
	}
	contract := mustAccount(t, code)
	createAndExecute(t, s, sender)
	createAndExecute(t, s, contract)

	txn, err := Build(sender, &contract.PublicAccount.Address, 0, 100, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := txn.Validate(s); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if _, ok := s.StorageTrie(contract.PublicAccount.Address).Get("123"); ok {
		t.Fatal("validation must not mutate the live storage trie")
	}
}
