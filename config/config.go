package config

import (
	"fmt"
	"strings"
	"time"

	"slotwatch/types"

	"github.com/spf13/viper"
)

// Path config
const (
	LogPath    = "./logs/"
	ConfigPath = "./"
	DataPath   = "./data/"
)

// Slot config
const (
	SLOT_DURATION      = 12 * time.Second
	OBSERVATION_OFFSET = 8 * time.Second // typical block propagation, used when a client never reported the slot

	MAINNET_GENESIS_MS = 1606824023000
	SEPOLIA_GENESIS_MS = 1655733600000
	HOLESKY_GENESIS_MS = 1695902400000
)

// Pipeline config
const (
	SLOT_WINDOW        = 50 // slots kept per (network, client) behind the newest observed slot
	REORG_LOOKBACK     = 10 * time.Minute
	BLOCK_LOOKBACK     = 10 * time.Minute
	CANONICAL_LOOKBACK = 20 * time.Minute

	RETENTION_CAP = 50 // snapshot files kept per network
	RUN_INTERVAL  = 12 * time.Second
)

// Network config
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultQueryTimeout = 30 * time.Second

	DefaultApiAddr   = ":5000"
	DefaultSlotCount = 20
)

type ClickhouseSettings struct {
	Addr         string
	Protocol     string // "native" or "http"
	Database     string
	Username     string
	Password     string
	TLS          bool
	DialTimeout  time.Duration
	QueryTimeout time.Duration
}

// Settings is resolved once at process start and passed explicitly to every component.
type Settings struct {
	Clickhouse ClickhouseSettings

	DataDir      string
	RetentionCap int
	RunInterval  time.Duration

	SlotWindow        uint64
	ReorgLookback     time.Duration
	BlockLookback     time.Duration
	CanonicalLookback time.Duration

	SlotDuration      time.Duration
	ObservationOffset time.Duration
	Genesis           map[types.Network]time.Time

	ApiAddr string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CLICKHOUSE_PROTOCOL", "native")
	v.SetDefault("CLICKHOUSE_DATABASE", "default")
	v.SetDefault("CLICKHOUSE_DIAL_TIMEOUT", DefaultDialTimeout)
	v.SetDefault("QUERY_TIMEOUT", DefaultQueryTimeout)

	v.SetDefault("DATA_DIR", DataPath)
	v.SetDefault("RETENTION_CAP", RETENTION_CAP)
	v.SetDefault("RUN_INTERVAL", RUN_INTERVAL)

	v.SetDefault("SLOT_WINDOW", SLOT_WINDOW)
	v.SetDefault("REORG_LOOKBACK", REORG_LOOKBACK)
	v.SetDefault("BLOCK_LOOKBACK", BLOCK_LOOKBACK)
	v.SetDefault("CANONICAL_LOOKBACK", CANONICAL_LOOKBACK)

	v.SetDefault("GENESIS_MAINNET", MAINNET_GENESIS_MS)
	v.SetDefault("GENESIS_SEPOLIA", SEPOLIA_GENESIS_MS)
	v.SetDefault("GENESIS_HOLESKY", HOLESKY_GENESIS_MS)

	v.SetDefault("API_ADDR", DefaultApiAddr)
}

// Load resolves Settings from v, which has already merged config files and the environment.
func Load(v *viper.Viper) (*Settings, error) {
	setDefaults(v)

	s := &Settings{
		Clickhouse: ClickhouseSettings{
			Addr:         v.GetString("CLICKHOUSE_ADDR"),
			Protocol:     strings.ToLower(v.GetString("CLICKHOUSE_PROTOCOL")),
			Database:     v.GetString("CLICKHOUSE_DATABASE"),
			Username:     v.GetString("CLICKHOUSE_USERNAME"),
			Password:     v.GetString("CLICKHOUSE_PASSWORD"),
			TLS:          v.GetBool("CLICKHOUSE_TLS"),
			DialTimeout:  v.GetDuration("CLICKHOUSE_DIAL_TIMEOUT"),
			QueryTimeout: v.GetDuration("QUERY_TIMEOUT"),
		},
		DataDir:           v.GetString("DATA_DIR"),
		RetentionCap:      v.GetInt("RETENTION_CAP"),
		RunInterval:       v.GetDuration("RUN_INTERVAL"),
		SlotWindow:        v.GetUint64("SLOT_WINDOW"),
		ReorgLookback:     v.GetDuration("REORG_LOOKBACK"),
		BlockLookback:     v.GetDuration("BLOCK_LOOKBACK"),
		CanonicalLookback: v.GetDuration("CANONICAL_LOOKBACK"),
		SlotDuration:      SLOT_DURATION,
		ObservationOffset: OBSERVATION_OFFSET,
		Genesis:           make(map[types.Network]time.Time, len(types.Networks)),
		ApiAddr:           v.GetString("API_ADDR"),
	}
	for _, n := range types.Networks {
		ms := v.GetInt64("GENESIS_" + strings.ToUpper(n.String()))
		s.Genesis[n] = time.UnixMilli(ms).UTC()
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.RetentionCap <= 0 {
		return fmt.Errorf("RETENTION_CAP must be positive, got %d", s.RetentionCap)
	}
	if s.RunInterval <= 0 {
		return fmt.Errorf("RUN_INTERVAL must be positive, got %s", s.RunInterval)
	}
	if s.Clickhouse.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", s.Clickhouse.QueryTimeout)
	}
	if s.Clickhouse.Protocol != "native" && s.Clickhouse.Protocol != "http" {
		return fmt.Errorf("CLICKHOUSE_PROTOCOL must be native or http, got %q", s.Clickhouse.Protocol)
	}
	if s.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	return nil
}

// RequireClickhouse is checked by commands that query the event source.
func (s *Settings) RequireClickhouse() error {
	if s.Clickhouse.Addr == "" {
		return fmt.Errorf("CLICKHOUSE_ADDR is not set, set it in .env, config.yaml or the environment")
	}
	return nil
}
