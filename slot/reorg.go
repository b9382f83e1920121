package slot

import (
	"slotwatch/types"

	MapSet "github.com/deckarep/golang-set/v2"
)

// ReorgIndex marks reorged slots per network and client.
// A missing network or client means no reorgs, same as an empty set.
type ReorgIndex map[types.Network]map[string]MapSet.Set[uint64]

// BuildReorgIndex groups reorg records by network and client. Nil records are ignored.
func BuildReorgIndex(records types.ReorgRecords) ReorgIndex {
	idx := make(ReorgIndex)
	for _, r := range records {
		if r == nil {
			continue
		}
		clients, ok := idx[r.Network]
		if !ok {
			clients = make(map[string]MapSet.Set[uint64])
			idx[r.Network] = clients
		}
		slots, ok := clients[r.Client]
		if !ok {
			slots = MapSet.NewThreadUnsafeSet[uint64]()
			clients[r.Client] = slots
		}
		slots.Add(r.Slot)
	}
	return idx
}

func (idx ReorgIndex) Contains(network types.Network, client string, slot uint64) bool {
	slots, ok := idx[network][client]
	return ok && slots.Contains(slot)
}

// Len is the number of (network, client, slot) entries
func (idx ReorgIndex) Len() int {
	n := 0
	for _, clients := range idx {
		for _, slots := range clients {
			n += slots.Cardinality()
		}
	}
	return n
}
