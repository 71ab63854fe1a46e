package consumer

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
)

// S2: dedupCapSorted must drop duplicate controls, sort the survivors
// deterministically, and respect the cap.
func TestDedupCapSorted(t *testing.T) {
	a := solana.PublicKey{1}
	b := solana.PublicKey{2}
	c := solana.PublicKey{3}

	events := []accounts.FillEvent{
		{SeqNum: 1, Control: b},
		{SeqNum: 2, Control: a},
		{SeqNum: 3, Control: b}, // duplicate
		{SeqNum: 4, Control: c},
	}

	got := dedupCapSorted(events, 2)
	assert.Len(t, got, 2, "cap must be respected")
	assert.Equal(t, a, got[0], "result must be sorted by the pubkey's u64[4] words")
	assert.Equal(t, b, got[1])
}

func TestDedupCapSortedEmpty(t *testing.T) {
	got := dedupCapSorted(nil, 12)
	assert.Empty(t, got)
}

func TestDedupCapSortedNoCap(t *testing.T) {
	a := solana.PublicKey{1}
	b := solana.PublicKey{2}
	events := []accounts.FillEvent{{SeqNum: 1, Control: a}, {SeqNum: 2, Control: b}}
	got := dedupCapSorted(events, 0)
	assert.Len(t, got, 2, "cap <= 0 must mean unbounded")
}
