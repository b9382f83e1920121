package slot

import "slotwatch/types"

// Normalize fills missing observation times with the clock's estimate and sets SecondsIntoSlot
// on every row. It fails without touching any row if a row's network has no clock.
func Normalize(rows types.ReconciledSlotRows, clocks Clocks) error {
	for _, row := range rows {
		if _, err := clocks.For(row.Network); err != nil {
			return err
		}
	}

	for _, row := range rows {
		clock := clocks[row.Network]
		if row.ObservedAt == nil {
			est := clock.EstimatedObservationTime(row.Slot)
			row.ObservedAt = &est
			row.Estimated = true
		}
		row.SecondsIntoSlot = clock.SecondsIntoSlot(*row.ObservedAt, row.Slot)
	}
	return nil
}
