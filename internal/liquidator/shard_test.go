package liquidator

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

// Every key is owned by exactly one shard, and Assign never returns an
// index outside [0, workerCount).
func TestShardingCoversExactlyOneWorker(t *testing.T) {
	const workerCount = 4
	keys := []solana.PublicKey{
		solana.SystemProgramID,
		solana.TokenProgramID,
	}
	for _, k := range keys {
		owners := 0
		for w := 0; w < workerCount; w++ {
			if Owns(k, w, workerCount) {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "key must be owned by exactly one worker")
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	k := solana.TokenProgramID
	first := Assign(k, 7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Assign(k, 7), "Assign must be a pure function of (key, workerCount)")
	}
}
