package db

import (
	"fmt"
	"strings"
	"time"

	"slotwatch/types"
	"slotwatch/utils"
)

// Raw rows as scanned from ClickHouse. Numeric and time columns are nullable so that
// a NULL (NaN upstream) becomes a dropped row instead of a failed query.

type reorgRow struct {
	Slot    *int64
	Network string
	Client  string
}

type blockSeenRow struct {
	Slot       *int64
	ObservedAt *time.Time
	Network    string
	Client     string
}

type canonicalRow struct {
	Slot       *int64
	BlockHash  string
	ParentHash string
	Network    string
	SeenAt     *time.Time
}

func parseSlot(v *int64) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: slot is null", utils.ErrMalformedRow)
	}
	if *v < 0 {
		return 0, fmt.Errorf("%w: negative slot %d", utils.ErrMalformedRow, *v)
	}
	return uint64(*v), nil
}

func parseNetwork(s string) (types.Network, error) {
	n, err := types.ParseNetwork(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrMalformedRow, err)
	}
	return n, nil
}

func parseClient(s string) (string, error) {
	c := strings.TrimSpace(s)
	if c == "" {
		return "", fmt.Errorf("%w: empty client", utils.ErrMalformedRow)
	}
	return c, nil
}

func (r *reorgRow) parse() (*types.ReorgRecord, error) {
	slot, err := parseSlot(r.Slot)
	if err != nil {
		return nil, err
	}
	network, err := parseNetwork(r.Network)
	if err != nil {
		return nil, err
	}
	client, err := parseClient(r.Client)
	if err != nil {
		return nil, err
	}
	return &types.ReorgRecord{Network: network, Client: client, Slot: slot}, nil
}

func (r *blockSeenRow) parse() (*types.SlotObservation, error) {
	slot, err := parseSlot(r.Slot)
	if err != nil {
		return nil, err
	}
	network, err := parseNetwork(r.Network)
	if err != nil {
		return nil, err
	}
	client, err := parseClient(r.Client)
	if err != nil {
		return nil, err
	}
	obs := &types.SlotObservation{Slot: slot, Network: network, Client: client}
	if r.ObservedAt != nil {
		if r.ObservedAt.IsZero() || r.ObservedAt.Unix() <= 0 {
			return nil, fmt.Errorf("%w: bad observation time %s", utils.ErrMalformedRow, r.ObservedAt)
		}
		t := r.ObservedAt.UTC()
		obs.ObservedAt = &t
	}
	return obs, nil
}

func (r *canonicalRow) parse() (*types.CanonicalBlock, error) {
	slot, err := parseSlot(r.Slot)
	if err != nil {
		return nil, err
	}
	network, err := parseNetwork(r.Network)
	if err != nil {
		return nil, err
	}
	if r.BlockHash == "" {
		return nil, fmt.Errorf("%w: empty block root", utils.ErrMalformedRow)
	}
	b := &types.CanonicalBlock{
		Slot:       slot,
		Network:    network,
		BlockHash:  r.BlockHash,
		ParentHash: r.ParentHash,
	}
	if r.SeenAt != nil {
		b.SeenAt = r.SeenAt.UTC()
	}
	return b, nil
}
