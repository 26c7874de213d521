package rpcclient

import (
	"context"
	"sync"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/internal/rpc"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
)

func setupTestServer(t *testing.T) (*Client, *chain.Chain, *account.Account) {
	t.Helper()

	c, err := chain.New(storage.NewMemory(), 0)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	pool := mempool.New()
	minerAccount, err := account.New(nil)
	if err != nil {
		t.Fatalf("account.New: %v", err)
	}

	var mu sync.Mutex
	withLock := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	srv := rpc.New("127.0.0.1:0", c, pool, minerAccount, nil, withLock, config.RPCConfig{Enabled: true})
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return New("http://" + srv.Addr()), c, minerAccount
}

func TestClient_Blockchain_ReturnsGenesis(t *testing.T) {
	client, _, _ := setupTestServer(t)

	blocks, err := client.Blockchain(context.Background())
	if err != nil {
		t.Fatalf("Blockchain: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1 (genesis only)", len(blocks))
	}
}

func TestClient_Mine_CreditsMiner(t *testing.T) {
	client, _, minerAccount := setupTestServer(t)

	msg, err := client.Mine(context.Background())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if msg != "block 1 mined." {
		t.Fatalf("message = %q, want %q", msg, "block 1 mined.")
	}

	balance, err := client.Balance(context.Background(), minerAccount.PublicAccount.Address.String())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != account.InitialBalance+50 {
		t.Fatalf("balance = %d, want %d", balance, account.InitialBalance+50)
	}
}

func TestClient_Transact_CreateAccount(t *testing.T) {
	client, _, _ := setupTestServer(t)

	transaction, err := client.Transact(context.Background(), TransactRequest{GasLimit: 100})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if transaction == nil {
		t.Fatal("expected a transaction back")
	}
}

func TestClient_Balance_UnknownAddress(t *testing.T) {
	client, _, _ := setupTestServer(t)

	zeroAddr := make([]byte, 33)
	_, err := client.Balance(context.Background(), hexEncode(zeroAddr))
	if err == nil {
		t.Fatal("expected an error for an address not yet in state")
	}
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != 404 {
		t.Errorf("status = %d, want 404", httpErr.StatusCode)
	}
}

func TestClient_State_ReturnsTrie(t *testing.T) {
	client, _, _ := setupTestServer(t)

	trie, err := client.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if trie.RootHash == "" {
		t.Error("expected a non-empty root hash")
	}
}

func TestClient_StorageTrie_EmptyInitially(t *testing.T) {
	client, _, _ := setupTestServer(t)

	tries, err := client.StorageTrie(context.Background())
	if err != nil {
		t.Fatalf("StorageTrie: %v", err)
	}
	if len(tries) != 0 {
		t.Errorf("len(tries) = %d, want 0 before any contract account exists", len(tries))
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	client := New("http://127.0.0.1:1") // port 1: nothing listens there.
	_, err := client.Blockchain(context.Background())
	if err == nil {
		t.Fatal("expected a connection error")
	}
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0xf]
	}
	return string(out)
}
