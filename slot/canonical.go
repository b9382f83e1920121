package slot

import "slotwatch/types"

type blockKey struct {
	slot    uint64
	network types.Network
}

// preferBlock reports whether a should replace b for the same (slot, network).
// The most recently seen identity wins; equal times fall back to the smaller block hash.
func preferBlock(a, b *types.CanonicalBlock) bool {
	if !a.SeenAt.Equal(b.SeenAt) {
		return a.SeenAt.After(b.SeenAt)
	}
	return a.BlockHash < b.BlockHash
}

// JoinCanonical left-joins block and parent hashes onto rows by (slot, network).
// Rows without a canonical block keep nil hashes. It returns the number of rows joined.
func JoinCanonical(rows types.ReconciledSlotRows, blocks types.CanonicalBlocks) int {
	byKey := make(map[blockKey]*types.CanonicalBlock, len(blocks))
	for _, b := range blocks {
		if b == nil {
			continue
		}
		k := blockKey{slot: b.Slot, network: b.Network}
		if cur, ok := byKey[k]; !ok || preferBlock(b, cur) {
			byKey[k] = b
		}
	}

	joined := 0
	for _, row := range rows {
		b, ok := byKey[blockKey{slot: row.Slot, network: row.Network}]
		if !ok {
			continue
		}
		hash, parent := b.BlockHash, b.ParentHash
		row.BlockHash = &hash
		row.ParentHash = &parent
		joined++
	}
	return joined
}
