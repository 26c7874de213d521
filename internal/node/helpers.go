package node

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// loadOrCreateMinerKey loads a hex-encoded secret key from path, or
// generates and persists a fresh one if the file does not yet exist.
// This keeps the node's miner identity (and therefore its address in
// the state trie, and its mining-reward balance) stable across
// restarts, even though the rest of the node's state is rebuilt by
// replaying the badger-backed block log.
func loadOrCreateMinerKey(path string) (*crypto.PrivateKey, error) {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err == nil {
		hexStr := strings.TrimSpace(string(data))
		keyBytes, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("miner key file %s contains invalid hex: %w", path, err)
		}
		return crypto.PrivateKeyFromBytes(keyBytes)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read miner key file %s: %w", path, err)
	}

	sk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate miner key: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create miner key dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(sk.Serialize())), 0600); err != nil {
		return nil, fmt.Errorf("write miner key file %s: %w", path, err)
	}

	return sk, nil
}
