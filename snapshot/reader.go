package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"

	"slotwatch/types"

	MapSet "github.com/deckarep/golang-set/v2"
)

// bareNaN matches a NaN value token, not NaN inside a string
var bareNaN = regexp.MustCompile(`([:\[,]\s*)NaN\b`)

// ReadSnapshot loads one stored snapshot. Bare NaN tokens left by older writers read as null.
func (s *Store) ReadSnapshot(network types.Network, slot uint64) (types.SlotSnapshot, error) {
	data, err := os.ReadFile(s.slotPath(network, slot))
	if err != nil {
		return nil, err
	}
	data = bareNaN.ReplaceAll(data, []byte("${1}null"))

	var snap types.SlotSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s slot %d: %w", network, slot, err)
	}
	return snap, nil
}

// Latest returns up to count snapshots of network, newest slot first. Unreadable or empty
// files are logged and skipped; a network without files yields an empty list.
func (s *Store) Latest(network types.Network, count int) ([]types.SlotEntry, error) {
	if count <= 0 {
		return []types.SlotEntry{}, nil
	}
	slots, err := s.ListSlots(network)
	if err != nil {
		return nil, err
	}

	entries := make([]types.SlotEntry, 0, min(count, len(slots)))
	for i := len(slots) - 1; i >= 0 && len(entries) < count; i-- {
		snap, err := s.ReadSnapshot(network, slots[i])
		if err != nil {
			s.logger.Error("Skipping unreadable snapshot", "network", network, "slot", slots[i], "err", err)
			continue
		}
		if len(snap) == 0 {
			s.logger.Warn("Skipping empty snapshot", "network", network, "slot", slots[i])
			continue
		}
		entries = append(entries, types.SlotEntry{Slot: slots[i], Data: snap})
	}
	return entries, nil
}

// Networks lists the allowed networks that currently have at least one snapshot.
func (s *Store) Networks() []types.Network {
	out := make([]types.Network, 0, len(types.Networks))
	for _, n := range types.Networks {
		slots, err := s.ListSlots(n)
		if err != nil {
			s.logger.Error("Failed to list snapshots", "network", n, "err", err)
			continue
		}
		if len(slots) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Clients is the sorted union of client names in the newest snapshot of every network.
func (s *Store) Clients() []string {
	clients := MapSet.NewThreadUnsafeSet[string]()
	for _, n := range s.Networks() {
		entries, err := s.Latest(n, 1)
		if err != nil || len(entries) == 0 {
			continue
		}
		clients.Append(entries[0].Data.Clients()...)
	}
	out := clients.ToSlice()
	sort.Strings(out)
	return out
}
