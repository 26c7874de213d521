package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
)

// handleBlockchain serves GET /blockchain: the chain as a JSON array of
// blocks, oldest first.
func (s *Server) handleBlockchain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var blocks interface{}
	var err error
	s.withLock(func() {
		blocks, err = s.chain.Blocks()
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// handleMine serves GET /mine: drains the mempool, mines a block
// crediting the miner account, applies it, and broadcasts it. Responds
// with the plain-text "block N mined." on success, or a 500 on any
// mining failure (gas too low in a queued transaction, most commonly).
func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var blockNumber uint64
	var mineErr error
	var broadcast func()

	s.withLock(func() {
		pending := s.pool.TxSeries()
		blk, err := s.chain.Mine(r.Context(), s.minerAccount.PublicAccount.Address, pending)
		if err != nil {
			mineErr = err
			return
		}
		s.pool.ClearBlockTx(blk.TxSeries)
		blockNumber = blk.Number()
		broadcast = func() {
			if s.p2pNode == nil {
				return
			}
			if err := s.p2pNode.BroadcastBlock(blk); err != nil {
				s.logger.Error().Err(err).Uint64("number", blockNumber).Msg("broadcast mined block failed")
			}
		}
	})

	if mineErr != nil {
		s.logger.Error().Err(mineErr).Msg("mine failed")
		http.Error(w, mineErr.Error(), http.StatusInternalServerError)
		return
	}

	if broadcast != nil {
		broadcast()
	}

	fmt.Fprintf(w, "block %d mined.", blockNumber)
}

// transactRequest is the POST /transact body.
type transactRequest struct {
	Value    uint64     `json:"value"`
	To       *string    `json:"to"`
	Code     []vm.Instr `json:"code"`
	GasLimit uint64     `json:"gas_limit"`
}

// handleTransact serves POST /transact. When to is present, it builds a
// signed Transact from the miner account to that address; when absent,
// it mints a fresh keypair, embeds code into the new account (empty
// code for a plain account), and builds a signed CreateAccount.
func (s *Server) handleTransact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transactRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	transaction, err := s.buildTransaction(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.withLock(func() {
		s.pool.Add(transaction)
	})

	if s.p2pNode != nil {
		if err := s.p2pNode.BroadcastTx(transaction); err != nil {
			s.logger.Error().Err(err).Str("id", transaction.ID().String()).Msg("broadcast transaction failed")
		}
	}

	writeJSON(w, http.StatusOK, transaction)
}

// buildTransaction implements the /transact kind-selection rule: a
// present "to" signs a Transact from the miner account; an absent "to"
// mints a fresh account (carrying code) and signs its own creation.
func (s *Server) buildTransaction(req *transactRequest) (*tx.Transaction, error) {
	if req.To != nil {
		to, err := types.ParseAddress(*req.To)
		if err != nil {
			return nil, fmt.Errorf("invalid to address: %w", err)
		}
		return tx.Build(s.minerAccount, &to, req.Value, req.GasLimit, nil)
	}

	newAccount, err := account.New(req.Code)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return tx.Build(newAccount, nil, req.Value, req.GasLimit, nil)
}

// balanceResponse is the GET /balance/{address} body.
type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

// handleBalance serves GET /balance/{address-hex}.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hexAddr := strings.TrimPrefix(r.URL.Path, "/balance/")
	addr, err := types.ParseAddress(hexAddr)
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}

	var balance uint64
	var getErr error
	s.withLock(func() {
		acc, err := s.chain.State().GetAccount(addr)
		if err != nil {
			getErr = err
			return
		}
		balance = acc.Balance
	})
	if getErr != nil {
		http.Error(w, getErr.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

// handleState serves GET /state: the state trie.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var trieSnapshot interface{}
	s.withLock(func() {
		trieSnapshot = s.chain.State().StateTrie
	})
	writeJSON(w, http.StatusOK, trieSnapshot)
}

// handleStorageTrie serves GET /storage_trie: the contract-address ->
// storage-trie map, keyed by hex address (the state package keys the
// map by the raw address type, which JSON cannot use as a map key
// directly).
func (s *Server) handleStorageTrie(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var out map[string]interface{}
	s.withLock(func() {
		tries := s.chain.State().StorageTries()
		out = make(map[string]interface{}, len(tries))
		for addr, t := range tries {
			out[addr.String()] = t
		}
	})
	writeJSON(w, http.StatusOK, out)
}

// writeJSON writes v as a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
