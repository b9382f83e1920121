package slot

import (
	"fmt"
	"time"

	"slotwatch/config"
	"slotwatch/types"
	"slotwatch/utils"
)

// Clock maps slots to wall-clock time for a fixed genesis and slot duration.
type Clock struct {
	genesis  time.Time
	duration time.Duration
	offset   time.Duration
}

func NewClock(genesis time.Time, duration, offset time.Duration) *Clock {
	return &Clock{genesis: genesis.UTC(), duration: duration, offset: offset}
}

func (c *Clock) SlotStartTime(slot uint64) time.Time {
	return c.genesis.Add(time.Duration(slot) * c.duration)
}

// EstimatedObservationTime stands in for a client that never reported the slot's block.
func (c *Clock) EstimatedObservationTime(slot uint64) time.Time {
	return c.SlotStartTime(slot).Add(c.offset)
}

// SecondsIntoSlot is the position of observedAt within a slot, in seconds rounded to the millisecond.
// The offset is taken modulo the slot duration, so an observation stamped against another slot's
// boundary still lands in [0, duration).
func (c *Clock) SecondsIntoSlot(observedAt time.Time, slot uint64) float64 {
	r := observedAt.Sub(c.SlotStartTime(slot)) % c.duration
	if r < 0 {
		r += c.duration
	}
	secs := utils.FloatRound(r.Seconds(), 3)
	if secs >= c.duration.Seconds() {
		// 11.9996s rounds onto the next boundary
		secs = 0
	}
	return secs
}

// CurrentSlot is the slot in progress at now, 0 before genesis.
func (c *Clock) CurrentSlot(now time.Time) uint64 {
	if now.Before(c.genesis) {
		return 0
	}
	return uint64(now.Sub(c.genesis) / c.duration)
}

func (c *Clock) TimeUntilNextSlot(now time.Time) time.Duration {
	if now.Before(c.genesis) {
		return c.genesis.Sub(now)
	}
	return c.SlotStartTime(c.CurrentSlot(now) + 1).Sub(now)
}

func (c *Clock) Info(network types.Network, now time.Time) types.ClockInfo {
	cur := c.CurrentSlot(now)
	return types.ClockInfo{
		Network:          network,
		CurrentSlot:      cur,
		SlotStart:        c.SlotStartTime(cur),
		SecondsUntilNext: utils.FloatRound(c.TimeUntilNextSlot(now).Seconds(), 3),
	}
}

// Clocks holds one Clock per network.
type Clocks map[types.Network]*Clock

func NewClocks(s *config.Settings) Clocks {
	clocks := make(Clocks, len(s.Genesis))
	for n, genesis := range s.Genesis {
		clocks[n] = NewClock(genesis, s.SlotDuration, s.ObservationOffset)
	}
	return clocks
}

func (cs Clocks) For(network types.Network) (*Clock, error) {
	c, ok := cs[network]
	if !ok {
		return nil, fmt.Errorf("%w: no slot clock for %q", utils.ErrUnknownNetwork, network)
	}
	return c, nil
}
