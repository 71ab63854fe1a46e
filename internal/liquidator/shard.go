package liquidator

import "github.com/gagliardetto/solana-go"

// Assign implements the §4.3.1 sharding predicate: a deliberately lossy
// byte-wise digest (not the raw key distribution, which is biased by the
// program's PDA derivation). Do not "improve" this hash without
// re-validating distribution against real account sets (§9).
func Assign(k solana.PublicKey, workerCount int) int {
	sum := 0
	for _, b := range k {
		sum += int(b) % workerCount
	}
	return sum % workerCount
}

// Owns reports whether shard workerIndex (of workerCount) owns Control
// key k.
func Owns(k solana.PublicKey, workerIndex, workerCount int) bool {
	return Assign(k, workerCount) == workerIndex
}
