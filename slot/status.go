package slot

import "slotwatch/types"

// ApplyReorgs marks every row found in the index as reorged, whatever its previous status.
// It returns the number of rows marked.
func ApplyReorgs(rows types.ReconciledSlotRows, idx ReorgIndex) int {
	marked := 0
	for _, row := range rows {
		if idx.Contains(row.Network, row.Client, row.Slot) {
			row.Status = types.StatusReorged
			marked++
		}
	}
	return marked
}
