package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slotwatch/types"
	"slotwatch/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, maxFiles int) *Store {
	t.Helper()
	return NewStore(t.TempDir(), maxFiles, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func row(network types.Network, client string, slot uint64, status types.Status) *types.ReconciledSlotRow {
	at := time.UnixMilli(1606824023000 + int64(slot)*12000 + 2345).UTC()
	return &types.ReconciledSlotRow{
		Slot:            slot,
		Network:         network,
		Client:          client,
		Status:          status,
		ObservedAt:      &at,
		SecondsIntoSlot: 2.345,
	}
}

func seedFiles(t *testing.T, s *Store, network types.Network, slots ...uint64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(s.networkDir(network), dirPerm))
	for _, slot := range slots {
		snap := types.SlotSnapshot{"seed": types.NewClientRecord(row(network, "seed", slot, types.StatusProduced))}
		require.NoError(t, s.WriteSnapshot(network, slot, snap))
	}
}

func TestWriteCreatesOneFilePerNetworkSlot(t *testing.T) {
	s := testStore(t, 50)
	rows := types.ReconciledSlotRows{
		row(types.Mainnet, "lighthouse", 100, types.StatusProduced),
		row(types.Mainnet, "prysm", 100, types.StatusMissed),
		row(types.Mainnet, "lighthouse", 101, types.StatusReorged),
		row(types.Sepolia, "teku", 100, types.StatusProduced),
	}

	results := s.Write(context.Background(), rows)
	require.Len(t, results, 2)
	assert.Equal(t, types.Mainnet, results[0].Network)
	assert.Equal(t, 2, results[0].Written)
	assert.Equal(t, 1, results[1].Written)

	mainnet, err := s.ListSlots(types.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 101}, mainnet)

	sepolia, err := s.ListSlots(types.Sepolia)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100}, sepolia)

	snap, err := s.ReadSnapshot(types.Mainnet, 100)
	require.NoError(t, err)
	require.Len(t, snap, 2)

	lh := snap["lighthouse"]
	assert.Equal(t, 1, lh.AttestationCount)
	assert.Equal(t, 100.0, lh.AttestationPercentage)
	assert.True(t, lh.HeadVote && lh.TargetVote && lh.SourceVote)
	assert.False(t, lh.Reorg)
	assert.Equal(t, types.StatusProduced, lh.Status)
	assert.Equal(t, 2.345, lh.SecondsInSlot)

	prysm := snap["prysm"]
	assert.Equal(t, 0, prysm.AttestationCount)
	assert.Equal(t, 0.0, prysm.AttestationPercentage)
	assert.False(t, prysm.HeadVote || prysm.TargetVote || prysm.SourceVote || prysm.Reorg)

	reorged, err := s.ReadSnapshot(types.Mainnet, 101)
	require.NoError(t, err)
	assert.True(t, reorged["lighthouse"].Reorg)
	assert.False(t, reorged["lighthouse"].HeadVote)
}

func TestWriteFilePermissions(t *testing.T) {
	s := testStore(t, 50)
	s.Write(context.Background(), types.ReconciledSlotRows{row(types.Mainnet, "A", 1, types.StatusProduced)})

	info, err := os.Stat(s.slotPath(types.Mainnet, 1))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(s.networkDir(types.Mainnet))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteIsIdempotent(t *testing.T) {
	s := testStore(t, 50)
	rows := types.ReconciledSlotRows{
		row(types.Mainnet, "teku", 7, types.StatusProduced),
		row(types.Mainnet, "nimbus", 7, types.StatusMissed),
		row(types.Mainnet, "lodestar", 7, types.StatusReorged),
	}

	s.Write(context.Background(), rows)
	first, err := os.ReadFile(s.slotPath(types.Mainnet, 7))
	require.NoError(t, err)

	s.Write(context.Background(), rows)
	second, err := os.ReadFile(s.slotPath(types.Mainnet, 7))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWriteOverwritesWithoutMerge(t *testing.T) {
	s := testStore(t, 50)
	s.Write(context.Background(), types.ReconciledSlotRows{
		row(types.Mainnet, "teku", 7, types.StatusProduced),
		row(types.Mainnet, "nimbus", 7, types.StatusProduced),
	})
	s.Write(context.Background(), types.ReconciledSlotRows{
		row(types.Mainnet, "teku", 7, types.StatusReorged),
	})

	snap, err := s.ReadSnapshot(types.Mainnet, 7)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.True(t, snap["teku"].Reorg)
}

func TestRetentionEvictsOldestBySlotNumber(t *testing.T) {
	s := testStore(t, 50)
	existing := make([]uint64, 0, 50)
	for i := uint64(1); i <= 50; i++ {
		// 9 < 10 numerically but not lexically
		existing = append(existing, i*9)
	}
	seedFiles(t, s, types.Mainnet, existing...)

	results := s.Write(context.Background(), types.ReconciledSlotRows{row(types.Mainnet, "A", 1000, types.StatusProduced)})
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Evicted)

	slots, err := s.ListSlots(types.Mainnet)
	require.NoError(t, err)
	require.Len(t, slots, 50)
	assert.Equal(t, uint64(18), slots[0], "slot 9 is the oldest and must be gone")
	assert.Equal(t, uint64(1000), slots[49])
}

func TestRetentionWithOverwrittenSlot(t *testing.T) {
	s := testStore(t, 50)
	existing := make([]uint64, 0, 51)
	for i := uint64(100); i <= 150; i++ {
		existing = append(existing, i)
	}
	seedFiles(t, s, types.Mainnet, existing...)

	results := s.Write(context.Background(), types.ReconciledSlotRows{row(types.Mainnet, "A", 150, types.StatusProduced)})
	assert.Equal(t, 1, results[0].Evicted)

	slots, err := s.ListSlots(types.Mainnet)
	require.NoError(t, err)
	require.Len(t, slots, 50)
	assert.Equal(t, uint64(101), slots[0])
}

func TestRetentionNeverEvictsThisRunsWrites(t *testing.T) {
	s := testStore(t, 3)
	rows := types.ReconciledSlotRows{}
	for slot := uint64(10); slot < 13; slot++ {
		rows = append(rows, row(types.Holesky, "A", slot, types.StatusProduced))
	}
	seedFiles(t, s, types.Holesky, 1, 2, 3)

	s.Write(context.Background(), rows)

	slots, err := s.ListSlots(types.Holesky)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11, 12}, slots)
}

func TestRetentionUnderCapKeepsEverything(t *testing.T) {
	s := testStore(t, 50)
	seedFiles(t, s, types.Mainnet, 1, 2, 3)

	evicted, failed := s.Retain(types.Mainnet)
	assert.Zero(t, evicted)
	assert.Zero(t, failed)

	evicted, failed = s.Retain(types.Sepolia)
	assert.Zero(t, evicted)
	assert.Zero(t, failed)
}

func TestListSlotsIgnoresForeignFiles(t *testing.T) {
	s := testStore(t, 50)
	seedFiles(t, s, types.Mainnet, 5, 40, 300)
	dir := s.networkDir(types.Mainnet)
	for _, name := range []string{"notes.txt", ".7.json.tmp-123", "abc.json", ".json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "9.json"), 0o755))

	slots, err := s.ListSlots(types.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 40, 300}, slots)

	missing, err := s.ListSlots(types.Holesky)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestWriteFailureKeepsOtherSlots(t *testing.T) {
	tests := []struct {
		name    string
		blocked uint64
		slots   []uint64
	}{
		{name: "first slot blocked", blocked: 20, slots: []uint64{20, 21, 22}},
		{name: "middle slot blocked", blocked: 21, slots: []uint64{20, 21, 22}},
		{name: "only slot blocked", blocked: 20, slots: []uint64{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t, 50)
			// a non-empty directory at the target path makes the final rename fail
			blocked := s.slotPath(types.Mainnet, tt.blocked)
			require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), dirPerm))

			rows := types.ReconciledSlotRows{}
			for _, slot := range tt.slots {
				rows = append(rows, row(types.Mainnet, "A", slot, types.StatusProduced))
			}
			results := s.Write(context.Background(), rows)
			require.Len(t, results, 1)
			assert.Equal(t, 1, results[0].Failed)
			assert.Equal(t, len(tt.slots)-1, results[0].Written)

			want := make([]uint64, 0, len(tt.slots))
			for _, slot := range tt.slots {
				if slot != tt.blocked {
					want = append(want, slot)
				}
			}
			slots, err := s.ListSlots(types.Mainnet)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, slots)

			err = s.WriteSnapshot(types.Mainnet, tt.blocked, types.SlotSnapshot{})
			assert.ErrorIs(t, err, utils.ErrWriteFailure)

			// no temp files left behind by the failed write
			entries, err := os.ReadDir(s.networkDir(types.Mainnet))
			require.NoError(t, err)
			assert.Len(t, entries, len(tt.slots))
		})
	}
}

func TestEvictionFailureIsCountedAndRetried(t *testing.T) {
	tests := []struct {
		name       string
		failing    map[uint64]bool
		wantFailed int
	}{
		{name: "every eviction fails", failing: map[uint64]bool{1: true, 2: true}, wantFailed: 2},
		{name: "one eviction fails", failing: map[uint64]bool{1: true}, wantFailed: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t, 3)
			seedFiles(t, s, types.Mainnet, 1, 2, 3, 4)
			s.remove = func(path string) error {
				for slot := range tt.failing {
					if path == s.slotPath(types.Mainnet, slot) {
						return os.ErrPermission
					}
				}
				return os.Remove(path)
			}

			results := s.Write(context.Background(), types.ReconciledSlotRows{row(types.Mainnet, "A", 5, types.StatusProduced)})
			require.Len(t, results, 1)
			assert.Equal(t, 1, results[0].Written)
			assert.Equal(t, tt.wantFailed, results[0].EvictFailed)
			assert.Equal(t, 2-tt.wantFailed, results[0].Evicted)

			slots, err := s.ListSlots(types.Mainnet)
			require.NoError(t, err)
			assert.Len(t, slots, 3+tt.wantFailed)
			assert.Contains(t, slots, uint64(5))

			// the next pass converges once removal works again
			s.remove = os.Remove
			evicted, failed := s.Retain(types.Mainnet)
			assert.Equal(t, tt.wantFailed, evicted)
			assert.Zero(t, failed)

			slots, err = s.ListSlots(types.Mainnet)
			require.NoError(t, err)
			assert.Equal(t, []uint64{3, 4, 5}, slots)
		})
	}
}

func TestReset(t *testing.T) {
	s := testStore(t, 50)
	seedFiles(t, s, types.Sepolia, 1, 2, 3)

	removed, err := s.Reset(types.Sepolia)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	slots, err := s.ListSlots(types.Sepolia)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestResetCountsOnlyRemovedFiles(t *testing.T) {
	s := testStore(t, 50)
	seedFiles(t, s, types.Sepolia, 1, 2, 3)
	s.remove = func(path string) error {
		if path == s.slotPath(types.Sepolia, 2) {
			// removed concurrently by another process
			if err := os.Remove(path); err != nil {
				return err
			}
			return os.ErrNotExist
		}
		return os.Remove(path)
	}

	removed, err := s.Reset(types.Sepolia)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	s.remove = func(string) error { return errors.New("read-only filesystem") }
	seedFiles(t, s, types.Sepolia, 7)
	_, err = s.Reset(types.Sepolia)
	assert.ErrorIs(t, err, utils.ErrEvictionFailure)
}

func TestGroupSplitsByNetwork(t *testing.T) {
	grouped := Group(types.ReconciledSlotRows{
		row(types.Mainnet, "A", 5, types.StatusProduced),
		row(types.Holesky, "A", 5, types.StatusMissed),
		row(types.Mainnet, "B", 5, types.StatusMissed),
	})
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[types.Mainnet][5], 2)
	assert.Len(t, grouped[types.Holesky][5], 1)
}
