package types

import (
	"time"

	"slotwatch/utils"
)

// TimestampLayout is the format of ClientRecord.Timestamp, UTC with millisecond precision
const TimestampLayout = "2006-01-02 15:04:05.000"

// ClientRecord is the persisted view of one client for one slot
type ClientRecord struct {
	AttestationCount      int     `json:"attestation_count"`
	AttestationPercentage float64 `json:"attestation_percentage"`
	HeadVote              bool    `json:"head_vote"`
	TargetVote            bool    `json:"target_vote"`
	SourceVote            bool    `json:"source_vote"`
	Reorg                 bool    `json:"reorg"`

	Status           Status  `json:"status"`
	Timestamp        string  `json:"timestamp"`
	TimestampSeconds float64 `json:"timestamp_seconds"` // unix milliseconds
	SecondsInSlot    float64 `json:"seconds_in_slot"`
	Estimated        bool    `json:"estimated"`
	Hash             *string `json:"hash"`
	ParentHash       *string `json:"parent_hash"`
}

// SlotSnapshot maps a client name to its record for one (network, slot)
type SlotSnapshot map[string]*ClientRecord

// NewClientRecord derives the persisted record from a normalized row.
// Vote and attestation indicators depend only on the status.
func NewClientRecord(row *ReconciledSlotRow) *ClientRecord {
	rec := &ClientRecord{
		Reorg:         row.Status == StatusReorged,
		Status:        row.Status,
		SecondsInSlot: row.SecondsIntoSlot,
		Estimated:     row.Estimated,
		Hash:          row.BlockHash,
		ParentHash:    row.ParentHash,
	}
	if row.Status == StatusProduced {
		rec.AttestationCount = 1
		rec.AttestationPercentage = 100.0
		rec.HeadVote = true
		rec.TargetVote = true
		rec.SourceVote = true
	}
	if row.ObservedAt != nil {
		ts := row.ObservedAt.UTC()
		rec.Timestamp = ts.Format(TimestampLayout)
		rec.TimestampSeconds = float64(ts.UnixMilli())
	}
	return rec
}

// Clients returns the client names of the snapshot in ascending order
func (s SlotSnapshot) Clients() []string {
	return utils.SortedKeys(s)
}

// SlotEntry is one element of the read API's slot listing
type SlotEntry struct {
	Slot uint64       `json:"slot"`
	Data SlotSnapshot `json:"data"`
}

// ClockInfo describes where the wall clock stands in the slot schedule of a network
type ClockInfo struct {
	Network          Network   `json:"network"`
	CurrentSlot      uint64    `json:"current_slot"`
	SlotStart        time.Time `json:"slot_start"`
	SecondsUntilNext float64   `json:"seconds_until_next"`
}
