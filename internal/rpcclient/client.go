// Package rpcclient provides an HTTP client for the klingnet node REST
// surface (/blockchain, /mine, /transact, /balance, /state, /storage_trie).
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/trie"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

// Client talks to a single klingnet node's HTTP RPC surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client targeting baseURL (e.g. "http://127.0.0.1:8545").
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, 10*time.Second)
}

// NewWithTimeout creates a client with a custom HTTP timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// HTTPError is returned when the node responds with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rpc: server returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Blockchain fetches every block known to the node, oldest first.
func (c *Client) Blockchain(ctx context.Context) ([]*block.Block, error) {
	var blocks []*block.Block
	if err := c.get(ctx, "/blockchain", &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Mine requests the node mine a block over its current mempool,
// returning the server's plain-text confirmation message.
func (c *Client) Mine(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/mine", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}

// TransactRequest is the POST /transact body. A nil To mints a fresh
// account carrying Code; a non-nil To sends Value from the node's
// miner account to that address.
type TransactRequest struct {
	Value    uint64     `json:"value"`
	To       *string    `json:"to"`
	Code     []vm.Instr `json:"code"`
	GasLimit uint64     `json:"gas_limit"`
}

// Transact submits a transaction to the node's mempool and returns the
// signed transaction the node built and broadcast.
func (c *Client) Transact(ctx context.Context, req TransactRequest) (*tx.Transaction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transact", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var t tx.Transaction
	if err := c.do(httpReq, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Balance fetches the balance of the account at the given hex address.
func (c *Client) Balance(ctx context.Context, hexAddr string) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.get(ctx, "/balance/"+hexAddr, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// State fetches the current global state trie.
func (c *Client) State(ctx context.Context) (*trie.Trie, error) {
	var t trie.Trie
	if err := c.get(ctx, "/state", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// StorageTrie fetches every contract's storage trie, keyed by hex address.
func (c *Client) StorageTrie(ctx context.Context) (map[string]*trie.Trie, error) {
	var out map[string]*trie.Trie
	if err := c.get(ctx, "/storage_trie", &out); err != nil {
		return nil, err
	}
	return out, nil
}
