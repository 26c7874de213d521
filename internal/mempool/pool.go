// Package mempool holds pending transactions waiting for block inclusion.
package mempool

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

// Pool is a transaction queue keyed by transaction id. Adding a
// transaction whose id is already present overwrites the prior entry,
// an idempotent add safe for the same transaction arriving from
// several peers at once.
type Pool struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]*tx.Transaction
}

// New creates an empty mempool.
func New() *Pool {
	return &Pool{txs: make(map[uuid.UUID]*tx.Transaction)}
}

// Add inserts transaction into the pool, keyed by its id, overwriting
// any prior entry with the same id.
func (p *Pool) Add(transaction *tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs[transaction.ID()] = transaction
}

// Has reports whether a transaction with the given id is queued.
func (p *Pool) Has(id uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[id]
	return exists
}

// Get retrieves a queued transaction by id, or nil if absent.
func (p *Pool) Get(id uuid.UUID) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.txs[id]
}

// Count returns the number of queued transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// TxSeries returns a snapshot of all queued transactions, in no
// particular order.
func (p *Pool) TxSeries() []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	series := make([]*tx.Transaction, 0, len(p.txs))
	for _, t := range p.txs {
		series = append(series, t)
	}
	return series
}

// ClearBlockTx removes every transaction in mined from the pool, by id.
// Called once a block carrying those transactions has been applied.
func (p *Pool) ClearBlockTx(mined []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range mined {
		delete(p.txs, t.ID())
	}
}
