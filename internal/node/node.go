// Package node wires together the chain, mempool, miner account, P2P
// transport, and HTTP surface into a single running process.
//
// A Node holds exactly one mutable aggregate — chain, mempool, miner
// account — behind one coarse mutex. Three cooperative tasks share it:
// the HTTP server (internal/rpc), the P2P block-gossip callback, and
// the P2P transaction-gossip callback. Every one of them runs its
// critical section through withLock; none of them holds the lock
// across a network call (a locally mined block is applied under the
// lock and broadcast after the lock is released).
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/internal/p2p"
	"github.com/Klingon-tech/klingnet-chain/internal/rpc"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/account"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Node is a fully initialized blockchain node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu          sync.Mutex
	db          storage.DB
	ch          *chain.Chain
	pool        *mempool.Pool
	minerAccount *account.Account

	p2pNode   *p2p.Node
	syncer    *p2p.Syncer
	rpcServer *rpc.Server
	autoMiner *miner.Miner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// withLock runs fn holding the node's single coarse mutex. Every
// access to ch/pool/minerAccount, from any of the three cooperative
// tasks, must go through this.
func (n *Node) withLock(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn()
}

// New builds a Node: storage, chain (replayed from disk if present),
// miner account (seeded into state on first run), mempool, P2P
// transport, and HTTP server. When P2P is enabled, New also starts the
// P2P host; Start launches the HTTP server and the autonomous miner.
func New(cfg *config.Config) (*Node, error) {
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		logFile = logsDir + "/klingnet.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := klog.WithComponent("node")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.ChainDataDir(), err)
	}

	ch, err := chain.New(db, cfg.VM.ExecutionLimitOverride)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create chain: %w", err)
	}
	logger.Info().Uint64("height", ch.Height()).Msg("chain ready")

	minerKey, err := loadOrCreateMinerKey(cfg.Mining.KeyFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load miner key: %w", err)
	}
	minerAccount, err := account.FromSecretKey(minerKey, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build miner account: %w", err)
	}
	if !ch.State().HasAccount(minerAccount.PublicAccount.Address) {
		if err := ch.State().PutAccount(minerAccount.PublicAccount); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed miner account: %w", err)
		}
		logger.Info().Str("address", minerAccount.PublicAccount.Address.String()).Msg("miner account seeded")
	}

	pool := mempool.New()

	n := &Node{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		ch:           ch,
		pool:         pool,
		minerAccount: minerAccount,
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	if cfg.P2P.Enabled {
		if err := n.setupP2P(); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup p2p: %w", err)
		}
	} else {
		logger.Warn().Msg("p2p disabled by config; node will run offline")
	}

	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(rpcAddr, ch, pool, minerAccount, n.p2pNode, n.withLock, cfg.RPC)
	} else {
		logger.Warn().Msg("rpc disabled by config")
	}

	if cfg.Mining.Enabled && cfg.Mining.AutoMineIntervalSeconds > 0 {
		interval := time.Duration(cfg.Mining.AutoMineIntervalSeconds) * time.Second
		n.autoMiner = miner.New(ch, pool, minerAccount.PublicAccount.Address, interval, n.withLock, n.onAutoMined)
	}

	return n, nil
}

// setupP2P creates the P2P transport and registers the block/tx gossip
// handlers — the node's other two cooperative tasks besides the HTTP
// server, both guarded by withLock.
func (n *Node) setupP2P() error {
	cfg := n.cfg
	p2pNode := p2p.New(p2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		MaxPeers:   cfg.P2P.MaxPeers,
		NoDiscover: cfg.P2P.NoDiscover,
		DB:         n.db,
		DHTServer:  cfg.P2P.DHTServer,
		NetworkID:  string(cfg.Network),
		DataDir:    cfg.ChainDataDir(),
	})

	p2pNode.SetHeightFn(func() uint64 { return n.ch.Height() })

	p2pNode.SetBlockHandler(func(from peer.ID, data []byte) {
		var blk block.Block
		if err := json.Unmarshal(data, &blk); err != nil {
			n.logger.Debug().Err(err).Msg("failed to unmarshal gossiped block")
			return
		}

		var processErr error
		n.withLock(func() {
			_, processErr = n.ch.ProcessBlock(&blk)
			if processErr == nil {
				n.pool.ClearBlockTx(blk.TxSeries)
			}
		})
		if processErr != nil {
			n.logger.Debug().Err(processErr).Uint64("number", blk.Number()).Msg("rejected gossiped block")
			return
		}
		n.logger.Info().Uint64("number", blk.Number()).Int("txs", len(blk.TxSeries)).Msg("applied gossiped block")
	})

	p2pNode.SetTxHandler(func(from peer.ID, data []byte) {
		var t tx.Transaction
		if err := json.Unmarshal(data, &t); err != nil {
			n.logger.Debug().Err(err).Msg("failed to unmarshal gossiped transaction")
			return
		}
		n.withLock(func() {
			n.pool.Add(&t)
		})
	})

	if err := p2pNode.Start(); err != nil {
		return fmt.Errorf("start p2p: %w", err)
	}
	n.logger.Info().Str("id", p2pNode.ID().String()).Int("port", cfg.P2P.Port).Msg("p2p node started")

	syncer := p2p.NewSyncer(p2pNode)
	syncer.RegisterHandler(func(fromHeight uint64, max uint32) []*block.Block {
		var blocks []*block.Block
		n.withLock(func() {
			all, err := n.ch.Blocks()
			if err != nil {
				return
			}
			for h := fromHeight; h < fromHeight+uint64(max) && h < uint64(len(all)); h++ {
				blocks = append(blocks, all[h])
			}
		})
		return blocks
	})
	syncer.RegisterHeightHandler(func() (uint64, string) {
		var height uint64
		var tipHash string
		n.withLock(func() {
			height = n.ch.Height()
			tipHash, _ = n.ch.Tip().Hash()
		})
		return height, tipHash
	})

	n.p2pNode = p2pNode
	n.syncer = syncer
	return nil
}

// onAutoMined broadcasts a block mined by the optional autonomous
// miner. Called by miner.Miner after withLock has been released,
// matching the /mine HTTP handler, which applies the mined block under
// the lock and broadcasts it after release.
func (n *Node) onAutoMined(blk *block.Block) {
	if n.p2pNode == nil {
		return
	}
	if err := n.p2pNode.BroadcastBlock(blk); err != nil {
		n.logger.Error().Err(err).Uint64("number", blk.Number()).Msg("broadcast auto-mined block failed")
	}
}

// Start launches the HTTP server and, if configured, the autonomous
// mining loop. P2P (if enabled) is already running after New.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("rpc server started")
	}

	if n.autoMiner != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.autoMiner.Run(n.ctx)
		}()
		n.logger.Info().Msg("autonomous mining loop started")
	}

	return nil
}

// Stop shuts down every task and closes the database.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("rpc shutdown error")
		}
	}
	if n.p2pNode != nil {
		if err := n.p2pNode.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("p2p shutdown error")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("database close error")
		}
	}
}

// RPCAddr returns the bound RPC listener address, or "" if RPC is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// P2PAddrs returns this node's dialable multiaddrs, or nil if P2P is disabled.
func (n *Node) P2PAddrs() []string {
	if n.p2pNode == nil {
		return nil
	}
	return n.p2pNode.Addrs()
}

// MinerAddress returns the address of this node's own miner account.
func (n *Node) MinerAddress() types.Address {
	return n.minerAccount.PublicAccount.Address
}

// MineOnce drains the mempool and mines a single block crediting the
// miner account, broadcasting it over P2P if enabled. Shares the
// mine-then-broadcast pattern used by the /mine HTTP handler; exported
// for callers (such as the local-testnet launcher) that drive mining
// directly instead of through the RPC surface.
func (n *Node) MineOnce(ctx context.Context) (*block.Block, error) {
	var blk *block.Block
	var mineErr error
	n.withLock(func() {
		pending := n.pool.TxSeries()
		b, err := n.ch.Mine(ctx, n.minerAccount.PublicAccount.Address, pending)
		if err != nil {
			mineErr = err
			return
		}
		n.pool.ClearBlockTx(b.TxSeries)
		blk = b
	})
	if mineErr != nil {
		return nil, mineErr
	}
	if n.p2pNode != nil {
		if err := n.p2pNode.BroadcastBlock(blk); err != nil {
			n.logger.Error().Err(err).Uint64("number", blk.Number()).Msg("broadcast mined block failed")
		}
	}
	return blk, nil
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	var h uint64
	n.withLock(func() { h = n.ch.Height() })
	return h
}

// ReplaceChain validates and, if fully valid, swaps in a candidate
// chain fetched from a seed peer — used by the --peer startup flag.
func (n *Node) ReplaceChain(candidate []*block.Block) error {
	var err error
	n.withLock(func() {
		err = n.ch.ReplaceChain(candidate)
	})
	return err
}

// SyncFromPeer fetches the full chain from peerID and replaces the
// local chain with it if it validates end-to-end.
func (n *Node) SyncFromPeer(ctx context.Context, peerID peer.ID) error {
	if n.syncer == nil {
		return errors.New("node: p2p not enabled")
	}
	blocks, err := n.syncer.RequestBlocks(ctx, peerID, 0, ^uint32(0))
	if err != nil {
		return fmt.Errorf("request blocks: %w", err)
	}
	return n.ReplaceChain(blocks)
}
