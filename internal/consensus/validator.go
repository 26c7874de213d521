package consensus

import "github.com/Klingon-tech/klingnet-chain/pkg/block"

// Validator validates mined blocks against consensus rules, relative to
// a fixed genesis block.
type Validator struct {
	genesis *block.Block
}

// NewValidator creates a block validator anchored to the given genesis
// block.
func NewValidator(genesis *block.Block) *Validator {
	return &Validator{genesis: genesis}
}

// ValidateBlock checks this against parent. See the package-level
// ValidateBlock for the rules applied.
func (v *Validator) ValidateBlock(parent, this *block.Block) error {
	return ValidateBlock(v.genesis, parent, this)
}
