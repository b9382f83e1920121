package slot

import (
	"sort"
	"time"

	"slotwatch/types"
)

type seriesKey struct {
	network types.Network
	client  string
}

// Reconcile turns sparse observations into a continuous slot timeline per (network, client).
//
// Each series keeps only observations within window slots of its newest slot, then every slot
// between its oldest and newest remaining slot gets exactly one row. A slot with an observation
// timestamp is produced; any other slot is missed with a nil ObservedAt. Duplicate observations
// of one slot keep the earliest timestamp. Rows are ordered by network, client, slot.
func Reconcile(observations types.SlotObservations, window uint64) types.ReconciledSlotRows {
	series := make(map[seriesKey]types.SlotObservations)
	for _, o := range observations {
		if o == nil {
			continue
		}
		k := seriesKey{network: o.Network, client: o.Client}
		series[k] = append(series[k], o)
	}

	keys := make([]seriesKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].network != keys[j].network {
			return keys[i].network < keys[j].network
		}
		return keys[i].client < keys[j].client
	})

	rows := make(types.ReconciledSlotRows, 0, len(observations))
	for _, k := range keys {
		rows = append(rows, reconcileSeries(k, series[k], window)...)
	}
	return rows
}

func reconcileSeries(k seriesKey, obs types.SlotObservations, window uint64) types.ReconciledSlotRows {
	maxSlot := obs[0].Slot
	for _, o := range obs[1:] {
		maxSlot = max(maxSlot, o.Slot)
	}

	minSlot := maxSlot
	seen := make(map[uint64]*time.Time, len(obs))
	for _, o := range obs {
		// slot >= max - window, written without underflow
		if o.Slot+window < maxSlot {
			continue
		}
		minSlot = min(minSlot, o.Slot)
		prev, ok := seen[o.Slot]
		if !ok || prev == nil || (o.ObservedAt != nil && o.ObservedAt.Before(*prev)) {
			seen[o.Slot] = o.ObservedAt
		}
	}

	rows := make(types.ReconciledSlotRows, 0, maxSlot-minSlot+1)
	for s := minSlot; s <= maxSlot; s++ {
		row := &types.ReconciledSlotRow{
			Slot:    s,
			Network: k.network,
			Client:  k.client,
			Status:  types.StatusMissed,
		}
		if ts := seen[s]; ts != nil {
			t := *ts
			row.ObservedAt = &t
			row.Status = types.StatusProduced
		}
		rows = append(rows, row)
	}
	return rows
}
