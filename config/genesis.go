package config

// =============================================================================
// Protocol Constants
//
// These are fixed by the account model and consensus rules; every node
// must agree on them or block validation diverges. They are not stored
// in a genesis file: this protocol has no validator set, token
// registry, or sub-chain nesting to configure, so there is nothing
// left to vary between networks besides the knobs already carried in
// Config.
// =============================================================================

const (
	// HashLength is the length, in hex characters, of every hash string
	// produced by the Keccak-256 hashing used throughout the chain.
	HashLength = 64

	// MineRateMillis is the target number of milliseconds between
	// mined blocks. Difficulty adjusts by ±1 (floored at 1) depending
	// on whether the previous block came in faster or slower than this.
	MineRateMillis = 13_000

	// MiningReward is the amount credited to a block's beneficiary
	// account for successfully mining it.
	MiningReward = 50

	// MiningRewardGasLimit is the gas limit attached to the synthetic
	// mining-reward transaction included in every mined block.
	MiningRewardGasLimit = 10

	// ExecutionLimit bounds the number of VM instructions a single
	// transaction's code may execute before the VM aborts with an
	// execution-limit fault. Config.VM.ExecutionLimitOverride can lower this for tests
	// that want to exercise the fault path without looping for real.
	ExecutionLimit = 10_000
)

// MaxBlockSize bounds the libp2p gossip message size for block and
// transaction propagation (pubsub.WithMaxMessageSize adds headroom on
// top of this for envelope overhead).
const MaxBlockSize = 2_000_000
