package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slotwatch/slot"
	"slotwatch/snapshot"
	"slotwatch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var genesis = time.UnixMilli(1606824023000).UTC()

func setupTestServer(t *testing.T) (*Server, *snapshot.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := snapshot.NewStore(t.TempDir(), 50, logger)
	clocks := slot.Clocks{types.Mainnet: slot.NewClock(genesis, 12*time.Second, 8*time.Second)}
	return NewServer(store, clocks, logger), store
}

func writeSlot(t *testing.T, store *snapshot.Store, network types.Network, s uint64, clients ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(store.Dir(), network.String()), 0o755))
	at := genesis.Add(time.Duration(s) * 12 * time.Second)
	snap := types.SlotSnapshot{}
	for _, c := range clients {
		snap[c] = types.NewClientRecord(&types.ReconciledSlotRow{
			Slot: s, Network: network, Client: c, Status: types.StatusProduced, ObservedAt: &at,
		})
	}
	require.NoError(t, store.WriteSnapshot(network, s, snap))
}

func get(t *testing.T, srv *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if out != nil && rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	}
	return rr
}

func TestHandleSlots(t *testing.T) {
	srv, store := setupTestServer(t)
	for s := uint64(1); s <= 25; s++ {
		writeSlot(t, store, types.Mainnet, s, "teku")
	}

	var entries []types.SlotEntry
	rr := get(t, srv, "/api/slots/mainnet?count=3", &entries)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(25), entries[0].Slot)
	assert.Equal(t, uint64(23), entries[2].Slot)
	assert.True(t, entries[0].Data["teku"].HeadVote)

	// default count
	get(t, srv, "/api/slots/mainnet", &entries)
	assert.Len(t, entries, 20)

	// bad count falls back to the default
	get(t, srv, "/api/slots/mainnet?count=abc", &entries)
	assert.Len(t, entries, 20)
}

func TestHandleSlotsMissingDataIsEmptyList(t *testing.T) {
	srv, _ := setupTestServer(t)

	for _, path := range []string{"/api/slots/holesky", "/api/slots/goerli", "/api/slots/mainnet?count=5"} {
		rr := get(t, srv, path, nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, "[]", rr.Body.String(), path)
	}
}

func TestHandleNetworksAndClients(t *testing.T) {
	srv, store := setupTestServer(t)

	rr := get(t, srv, "/api/networks", nil)
	assert.JSONEq(t, "[]", rr.Body.String())
	rr = get(t, srv, "/api/clients", nil)
	assert.JSONEq(t, "[]", rr.Body.String())

	writeSlot(t, store, types.Mainnet, 10, "lighthouse", "prysm")
	writeSlot(t, store, types.Holesky, 3, "teku")

	var networks []types.Network
	get(t, srv, "/api/networks", &networks)
	assert.Equal(t, []types.Network{types.Mainnet, types.Holesky}, networks)

	var clients []string
	get(t, srv, "/api/clients", &clients)
	assert.Equal(t, []string{"lighthouse", "prysm", "teku"}, clients)
}

func TestHandleClock(t *testing.T) {
	srv, _ := setupTestServer(t)
	srv.now = func() time.Time { return genesis.Add(125 * time.Second) }

	var info types.ClockInfo
	rr := get(t, srv, "/api/clock/mainnet", &info)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint64(10), info.CurrentSlot)
	assert.Equal(t, 7.0, info.SecondsUntilNext)

	rr = get(t, srv, "/api/clock/sepolia", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := setupTestServer(t)
	rr := get(t, srv, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
