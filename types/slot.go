package types

import "time"

// Status is the classification of a slot for one client on one network
type Status string

const (
	StatusProduced Status = "produced"
	StatusMissed   Status = "missed"
	StatusReorged  Status = "reorged"
)

// SlotObservation is the first time a client saw the block of a slot, read from beacon_api_eth_v1_events_block
type SlotObservation struct {
	Slot       uint64     `ch:"slot"`
	Network    Network    `ch:"network"`
	Client     string     `ch:"client"`
	ObservedAt *time.Time `ch:"observed_at"` // nil when the source had no usable timestamp
}

type SlotObservations []*SlotObservation

// ReorgRecord marks a slot affected by a chain reorg reported by a client, read from beacon_api_eth_v1_events_chain_reorg
type ReorgRecord struct {
	Network Network `ch:"network"`
	Client  string  `ch:"client"`
	Slot    uint64  `ch:"slot"` // affected slot, already resolved by the query as slot - depth
}

type ReorgRecords []*ReorgRecord

// CanonicalBlock is the canonical block identity of a slot, read from beacon_api_eth_v2_beacon_block
type CanonicalBlock struct {
	Slot       uint64    `ch:"slot"`
	Network    Network   `ch:"network"`
	BlockHash  string    `ch:"block_root"`
	ParentHash string    `ch:"parent_root"`
	SeenAt     time.Time `ch:"seen_at"` // latest updated_date_time for this identity
}

type CanonicalBlocks []*CanonicalBlock

// ReconciledSlotRow is one (network, client, slot) row of a run, after reconciliation against the slot timeline
type ReconciledSlotRow struct {
	Slot    uint64
	Network Network
	Client  string
	Status  Status

	ObservedAt *time.Time // nil until normalized
	Estimated  bool       // ObservedAt was derived from the slot clock

	BlockHash  *string
	ParentHash *string

	SecondsIntoSlot float64
}

type ReconciledSlotRows []*ReconciledSlotRow
