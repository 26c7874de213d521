package tx

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Build implements create_transaction. Exactly one of beneficiary or to
// selects the transaction kind:
//   - beneficiary present: an unsigned MiningReward tx paying
//     MiningReward to beneficiary, ignoring value.
//   - beneficiary absent, to present: a signed Transact tx from acct to
//     to, for value and gasLimit.
//   - both absent: a signed CreateAccount tx whose account_data is
//     acct's own PublicAccount (acct is the new account being created).
func Build(acct *account.Account, to *types.Address, value, gasLimit uint64, beneficiary *types.Address) (*Transaction, error) {
	if beneficiary != nil {
		return &Transaction{
			UnsignedBody: UnsignedBody{
				ID:       uuid.New(),
				From:     nil,
				To:       beneficiary,
				Value:    MiningReward,
				GasLimit: MiningRewardGasLimit,
				Data:     Data{TxType: TypeMiningReward},
			},
		}, nil
	}

	if acct == nil {
		return nil, fmt.Errorf("build transaction: account required")
	}

	var body UnsignedBody
	if to != nil {
		from := acct.PublicAccount.Address
		body = UnsignedBody{
			ID:       uuid.New(),
			From:     &from,
			To:       to,
			Value:    value,
			GasLimit: gasLimit,
			Data:     Data{TxType: TypeTransact},
		}
	} else {
		body = UnsignedBody{
			ID:       uuid.New(),
			From:     nil,
			To:       nil,
			Value:    value,
			GasLimit: gasLimit,
			Data:     Data{TxType: TypeCreateAccount, AccountData: &acct.PublicAccount},
		}
	}

	bodyJSON, err := unsignedBodyJSON(body)
	if err != nil {
		return nil, err
	}
	sig, err := acct.Sign(bodyJSON)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	return &Transaction{UnsignedBody: body, Signature: sig}, nil
}
