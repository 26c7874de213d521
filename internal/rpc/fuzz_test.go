package rpc

import (
	"encoding/json"
	"testing"
)

// FuzzTransactRequestUnmarshal tests that arbitrary JSON does not panic
// when decoded as a POST /transact body.
func FuzzTransactRequestUnmarshal(f *testing.F) {
	f.Add([]byte(`{"value":10,"to":null,"code":[],"gas_limit":100}`))
	f.Add([]byte(`{"value":0,"to":"0011223344","code":[{"op":"PUSH","value":1}],"gas_limit":5}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"code":[{"op":"BOGUS"}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var req transactRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		_ = req.Value
		_ = req.To
		_ = req.GasLimit
	})
}
