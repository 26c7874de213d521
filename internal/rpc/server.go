// Package rpc implements the node's HTTP surface: a small REST API for
// inspecting the chain and state, submitting transactions, and
// triggering a mine.
package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/internal/p2p"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Server is the node's HTTP server: GET /blockchain, GET /mine,
// POST /transact, GET /balance/{address}, GET /state, GET /storage_trie.
//
// Every handler that touches chain or pool runs inside withLock, the
// same single coarse mutex guarding the node's block-consumer and
// tx-consumer loops (internal/node). Broadcasts happen outside the
// lock: the payload is built while holding it, then published after
// it is released.
type Server struct {
	addr string

	chain       *chain.Chain
	pool        *mempool.Pool
	minerAccount *account.Account
	p2pNode     *p2p.Node

	// withLock serializes every access to chain/pool with the rest of
	// the node's tasks. Must be supplied by the caller (internal/node).
	withLock func(func())

	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet
	corsOrigins []string
}

// New creates an HTTP server bound to addr, serving chain/pool under
// withLock and signing miner-initiated transactions with minerAccount.
// p2pNode may be nil, in which case mined blocks and submitted
// transactions are applied/queued locally but never broadcast.
func New(addr string, ch *chain.Chain, pool *mempool.Pool, minerAccount *account.Account,
	p2pNode *p2p.Node, withLock func(func()), rpcCfg ...config.RPCConfig) *Server {

	s := &Server{
		addr:         addr,
		chain:        ch,
		pool:         pool,
		minerAccount: minerAccount,
		p2pNode:      p2pNode,
		withLock:     withLock,
		logger:       klog.RPC,
	}

	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/blockchain", s.withMiddleware(s.handleBlockchain))
	mux.HandleFunc("/mine", s.withMiddleware(s.handleMine))
	mux.HandleFunc("/transact", s.withMiddleware(s.handleTransact))
	mux.HandleFunc("/balance/", s.withMiddleware(s.handleBalance))
	mux.HandleFunc("/state", s.withMiddleware(s.handleState))
	mux.HandleFunc("/storage_trie", s.withMiddleware(s.handleStorageTrie))

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start begins listening and serving in a background goroutine. It
// returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("rpc server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// withMiddleware wraps a handler with IP filtering and CORS, matching
// every route's behavior before it touches chain/pool.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			return
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			return
		}
	}
}
