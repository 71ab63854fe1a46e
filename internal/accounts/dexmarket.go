package accounts

import (
	"github.com/gagliardetto/solana-go"

	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
)

// DexMarket is the order-book and event-queue descriptor for one perp (or
// spot) market.
type DexMarket struct {
	OwnAddress    solana.PublicKey
	Bids          solana.PublicKey
	Asks          solana.PublicKey
	ReqQ          solana.PublicKey
	EventQ        solana.PublicKey
	CoinLotSize   uint64
	PcLotSize     uint64
	CoinDecimals  uint8
	FundingIndex  fixedq.Q
	LastUpdated   int64
}

// DecodeDexMarket casts raw account data into a DexMarket.
func DecodeDexMarket(data []byte) (*DexMarket, error) {
	c := newCursor(data)
	d := c.discriminator()
	if d != DiscriminatorDexMarket {
		return nil, &ErrWrongDiscriminator{Want: DiscriminatorDexMarket, Got: d}
	}
	m := &DexMarket{
		OwnAddress:   c.pubkey(),
		Bids:         c.pubkey(),
		Asks:         c.pubkey(),
		ReqQ:         c.pubkey(),
		EventQ:       c.pubkey(),
		CoinLotSize:  c.u64(),
		PcLotSize:    c.u64(),
		CoinDecimals: c.u8(),
		FundingIndex: fixedq.FromBits(bigFromLEBytes(c.i128())),
		LastUpdated:  c.i64(),
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// EventQueueHeader is the fixed-size header prefixing an event queue
// account, ahead of its ring-buffer of raw event slots.
type EventQueueHeader struct {
	Head  uint64
	Count uint64
	SeqNum uint64
}

// SentinelHead is the "before any success" head value per invariant 6 of
// §8: strictly greater than any valid head.
const SentinelHead uint64 = 1 << 48

// DecodeEventQueueHeader reads the header of an event-queue account; the
// caller then walks `Count` fixed-size event slots immediately following.
func DecodeEventQueueHeader(data []byte) (EventQueueHeader, error) {
	c := newCursor(data)
	h := EventQueueHeader{
		Head:   c.u64(),
		Count:  c.u64(),
		SeqNum: c.u64(),
	}
	if c.err != nil {
		return EventQueueHeader{}, c.err
	}
	return h, nil
}

// FillEvent is one matching-engine fill slot of an event queue, carrying
// enough fields for both consumer de-duplication and recorder trade
// replay.
type FillEvent struct {
	SeqNum          uint64
	IsBid           bool
	Maker           bool
	Control         solana.PublicKey
	NativeQtyPaid   uint64
	NativeQtyReleased uint64
	NativeFeeOrRebate uint64
}

const fillEventSize = 1 + 8 + 32 + 8 + 8 + 8

// DecodeEventQueueEvents decodes `count` fixed-size event slots starting
// right after the header.
func DecodeEventQueueEvents(data []byte, count uint64) ([]FillEvent, error) {
	const headerSize = 24
	c := newCursor(data[headerSize:])
	events := make([]FillEvent, 0, count)
	for i := uint64(0); i < count; i++ {
		flags := c.u8()
		ev := FillEvent{
			SeqNum:            c.u64(),
			IsBid:             flags&1 != 0,
			Maker:             flags&2 != 0,
			Control:           c.pubkey(),
			NativeQtyPaid:     c.u64(),
			NativeQtyReleased: c.u64(),
			NativeFeeOrRebate: c.u64(),
		}
		if c.err != nil {
			return nil, c.err
		}
		events = append(events, ev)
	}
	return events, nil
}
