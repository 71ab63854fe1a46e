package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// StateSignerPDA derives the program-derived address that signs on behalf
// of the exchange program, per §9: the first successful derivation with
// seed [state] whose bump equals wantBump. A mismatch is fatal at startup.
func StateSignerPDA(programID, state solana.PublicKey, wantBump uint8) (solana.PublicKey, error) {
	pda, bump, err := solana.FindProgramAddress([][]byte{state[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive state signer: %w", err)
	}
	if bump != wantBump {
		return solana.PublicKey{}, fmt.Errorf("state signer bump mismatch: program derived %d, state.signer_nonce=%d", bump, wantBump)
	}
	return pda, nil
}

// OpenOrdersPDA derives a control's per-market open-orders account:
// PDA([control, dex_market], dexProgram).
func OpenOrdersPDA(dexProgram, control, dexMarket solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{control[:], dexMarket[:]}, dexProgram)
}

// MarginPDA derives a user's margin account:
// PDA([authority, state, "marginv1"], zoProgram).
func MarginPDA(zoProgram, authority, state solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{authority[:], state[:], []byte("marginv1")}, zoProgram)
}

// VaultSignerPDA derives a Serum spot market's vault-signer PDA:
// PDA([market], dexProgram) with the nonce supplied by the market itself
// rather than searched for, matching Serum's own convention.
func VaultSignerPDA(dexProgram, market solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	seeds := [][]byte{market[:], {byte(nonce)}}
	return solana.CreateProgramAddress(seeds, dexProgram)
}
