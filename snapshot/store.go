package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"slotwatch/types"
	"slotwatch/utils"

	"github.com/alitto/pond/v2"
)

const (
	fileExt  = ".json"
	filePerm = 0o644
	dirPerm  = 0o755
)

// Store keeps one JSON file per (network, slot) under dir/{network}/{slot}.json
// and at most maxFiles files per network.
type Store struct {
	dir      string
	maxFiles int
	logger   *slog.Logger
	remove   func(string) error
}

func NewStore(dir string, maxFiles int, logger *slog.Logger) *Store {
	return &Store{dir: dir, maxFiles: maxFiles, logger: logger, remove: os.Remove}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) networkDir(network types.Network) string {
	return filepath.Join(s.dir, network.String())
}

func (s *Store) slotPath(network types.Network, slot uint64) string {
	return filepath.Join(s.networkDir(network), strconv.FormatUint(slot, 10)+fileExt)
}

// WriteResult counts what one Write did for one network.
type WriteResult struct {
	Network     types.Network
	Written     int
	Failed      int
	Evicted     int
	EvictFailed int
}

// Group builds one snapshot per (network, slot) present in rows.
func Group(rows types.ReconciledSlotRows) map[types.Network]map[uint64]types.SlotSnapshot {
	out := make(map[types.Network]map[uint64]types.SlotSnapshot)
	for _, row := range rows {
		slots, ok := out[row.Network]
		if !ok {
			slots = make(map[uint64]types.SlotSnapshot)
			out[row.Network] = slots
		}
		snap, ok := slots[row.Slot]
		if !ok {
			snap = make(types.SlotSnapshot)
			slots[row.Slot] = snap
		}
		snap[row.Client] = types.NewClientRecord(row)
	}
	return out
}

// Write persists the snapshots of rows, one worker per network, then enforces retention
// for each network once all of its files are written. A failed file is logged and skipped.
func (s *Store) Write(ctx context.Context, rows types.ReconciledSlotRows) []WriteResult {
	grouped := Group(rows)
	networks := make([]types.Network, 0, len(grouped))
	for n := range grouped {
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i] < networks[j] })

	results := make([]WriteResult, len(networks))
	if len(networks) == 0 {
		return results
	}

	pool := pond.NewPool(len(networks))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	for i, network := range networks {
		i, network := i, network
		group.Submit(func() {
			results[i] = s.writeNetwork(network, grouped[network])
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.logger.Warn("Some snapshot writers failed", "err", err)
	}
	return results
}

func (s *Store) writeNetwork(network types.Network, slots map[uint64]types.SlotSnapshot) WriteResult {
	res := WriteResult{Network: network}
	if err := os.MkdirAll(s.networkDir(network), dirPerm); err != nil {
		s.logger.Error("Failed to create network directory", "network", network, "err", err)
		res.Failed = len(slots)
		return res
	}

	for slot, snap := range slots {
		if err := s.WriteSnapshot(network, slot, snap); err != nil {
			s.logger.Error("Failed to write snapshot", "network", network, "slot", slot, "err", err)
			res.Failed++
			continue
		}
		res.Written++
	}

	res.Evicted, res.EvictFailed = s.Retain(network)
	s.logger.Info("Wrote snapshots", "network", network, "written", res.Written, "failed", res.Failed,
		"evicted", res.Evicted, "evict_failed", res.EvictFailed)
	return res
}

// WriteSnapshot replaces the file of (network, slot) atomically: readers see either the old
// content or the new one.
func (s *Store) WriteSnapshot(network types.Network, slot uint64, snap types.SlotSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: marshal slot %d: %w", utils.ErrWriteFailure, slot, err)
	}
	data = append(data, '\n')

	dir := s.networkDir(network)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%d%s.tmp-*", slot, fileExt))
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrWriteFailure, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %w", utils.ErrWriteFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %w", utils.ErrWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", utils.ErrWriteFailure, err)
	}
	// CreateTemp uses 0600; the API process needs to read it
	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", utils.ErrWriteFailure, err)
	}
	if err := os.Rename(tmpName, s.slotPath(network, slot)); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", utils.ErrWriteFailure, err)
	}
	return nil
}

// ListSlots returns the slots stored for network in ascending order.
// A missing directory is an empty list. Files that are not {slot}.json are ignored.
func (s *Store) ListSlots(network types.Network) ([]uint64, error) {
	entries, err := os.ReadDir(s.networkDir(network))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	slots := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		slot, ok := parseSlotFile(e.Name())
		if !ok {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots, nil
}

func parseSlotFile(name string) (uint64, bool) {
	base, ok := strings.CutSuffix(name, fileExt)
	if !ok || base == "" {
		return 0, false
	}
	slot, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return slot, true
}

// Retain deletes the lowest slots of network until at most maxFiles remain. A file that cannot
// be deleted is logged and skipped. It returns how many files were deleted and how many failed.
func (s *Store) Retain(network types.Network) (evicted, failed int) {
	slots, err := s.ListSlots(network)
	if err != nil {
		s.logger.Error("Failed to list snapshots for retention", "network", network, "err", err)
		return 0, 0
	}

	excess := len(slots) - s.maxFiles
	for i := 0; i < excess; i++ {
		path := s.slotPath(network, slots[i])
		if err := s.remove(path); err != nil {
			s.logger.Warn("Failed to evict snapshot", "network", network, "slot", slots[i],
				"err", fmt.Errorf("%w: %w", utils.ErrEvictionFailure, err))
			failed++
			continue
		}
		s.logger.Debug("Evicted snapshot", "network", network, "slot", slots[i])
		evicted++
	}
	return evicted, failed
}

// Reset removes every snapshot file of network and returns how many were removed.
func (s *Store) Reset(network types.Network) (int, error) {
	slots, err := s.ListSlots(network)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, slot := range slots {
		if err := s.remove(s.slotPath(network, slot)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("%w: %w", utils.ErrEvictionFailure, err)
		}
		removed++
	}
	return removed, nil
}
