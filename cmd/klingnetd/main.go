// Klingnet full node daemon.
//
// Usage:
//
//	klingnetd [--mine --mine-interval=30]   Run node
//	klingnetd --peer=<multiaddr>            Join an existing network
//	klingnetd --help                        Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/node"
	"github.com/libp2p/go-libp2p/core/peer"
)

func main() {
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating node: %v\n", err)
		os.Exit(1)
	}

	if flags.Peer != "" {
		peerID, err := resolvePeer(flags.Peer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --peer %q: %v\n", flags.Peer, err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := n.SyncFromPeer(ctx, peerID); err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "Error syncing from peer %s: %v\n", flags.Peer, err)
			os.Exit(1)
		}
		cancel()
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting node: %v\n", err)
		os.Exit(1)
	}

	if addr := n.RPCAddr(); addr != "" {
		fmt.Printf("klingnetd listening: rpc=%s network=%s height=%d\n", addr, cfg.Network, n.Height())
	} else {
		fmt.Printf("klingnetd running: network=%s height=%d\n", cfg.Network, n.Height())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

// resolvePeer parses a libp2p multiaddr's trailing /p2p/<id> component
// into a peer.ID for Node.SyncFromPeer.
func resolvePeer(multiaddr string) (peer.ID, error) {
	addrInfo, err := peer.AddrInfoFromString(multiaddr)
	if err != nil {
		return "", err
	}
	return addrInfo.ID, nil
}
