package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// ComputeUnitLimitInstruction builds a SetComputeUnitLimit instruction for
// the given budget, used by the crank's per-chunk compute-unit budgeting
// (§4.2: "declares a compute-unit budget proportional to chunk size").
func ComputeUnitLimitInstruction(units uint32) (solana.Instruction, error) {
	ix, err := computebudget.NewSetComputeUnitLimitInstruction(units).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build compute unit limit instruction: %w", err)
	}
	return ix, nil
}
