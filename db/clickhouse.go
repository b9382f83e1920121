package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"slotwatch/config"
	"slotwatch/types"
	"slotwatch/utils"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	reorgQuery = `
	SELECT DISTINCT
		toNullable(toInt64(slot) - toInt64(depth)) AS affected_slot,
		meta_network_name,
		meta_consensus_implementation
	FROM default.beacon_api_eth_v1_events_chain_reorg
	WHERE event_date_time > NOW() - INTERVAL ? SECOND
		AND meta_network_name IN (%s)`

	blockSeenQuery = `
	SELECT
		toNullable(toInt64(slot)) AS slot,
		toNullable(min(event_date_time)) AS observed_at,
		meta_network_name,
		meta_consensus_implementation
	FROM default.beacon_api_eth_v1_events_block
	WHERE updated_date_time > NOW() - INTERVAL ? SECOND
		AND meta_network_name IN (%s)
	GROUP BY slot, meta_network_name, meta_consensus_implementation
	ORDER BY slot DESC`

	canonicalQuery = `
	SELECT
		toNullable(toInt64(slot)) AS slot,
		block_root,
		parent_root,
		meta_network_name,
		toNullable(max(updated_date_time)) AS seen_at
	FROM default.beacon_api_eth_v2_beacon_block
	WHERE updated_date_time > NOW() - INTERVAL ? SECOND
		AND meta_network_name IN (%s)
	GROUP BY slot, block_root, parent_root, meta_network_name
	ORDER BY slot DESC`
)

type ClickhouseDB struct {
	conn    driver.Conn
	timeout time.Duration
	logger  *slog.Logger
}

// NewClickhouse opens the connection once with credentials resolved at startup and checks it is reachable.
func NewClickhouse(ctx context.Context, s config.ClickhouseSettings, logger *slog.Logger) (*ClickhouseDB, error) {
	opts := &clickhouse.Options{
		Addr: []string{s.Addr},
		Auth: clickhouse.Auth{
			Database: s.Database,
			Username: s.Username,
			Password: s.Password,
		},
		DialTimeout:  s.DialTimeout,
		ReadTimeout:  s.QueryTimeout,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		MaxOpenConns: 3,
		Settings: clickhouse.Settings{
			"max_execution_time": int(s.QueryTimeout.Seconds()),
		},
	}
	if s.Protocol == "http" {
		opts.Protocol = clickhouse.HTTP
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionGZIP}
	}
	if s.TLS {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", utils.ErrSourceUnavailable, s.Addr, err)
	}

	err = utils.Retry(ctx, "clickhouse ping", utils.DefaultRetryTimes, utils.DefaultRetryInterval, logger, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, s.DialTimeout)
		defer cancel()
		return conn.Ping(pingCtx)
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", utils.ErrSourceUnavailable, s.Addr, err)
	}
	logger.Info("Connected to ClickHouse", "addr", s.Addr, "protocol", s.Protocol, "database", s.Database)

	return &ClickhouseDB{conn: conn, timeout: s.QueryTimeout, logger: logger}, nil
}

func (d *ClickhouseDB) Close() error {
	return d.conn.Close()
}

// networkArgs renders the allow-list as IN placeholders plus their arguments
func networkArgs() (string, []any) {
	marks := make([]string, 0, len(types.Networks))
	args := make([]any, 0, len(types.Networks))
	for _, n := range types.Networks {
		marks = append(marks, "?")
		args = append(args, n.String())
	}
	return strings.Join(marks, ", "), args
}

// query runs q under the configured timeout and hands each row to scan. A result whose column
// count differs from columns is logged and treated as empty.
func (d *ClickhouseDB) query(ctx context.Context, name, q string, columns int, lookback time.Duration, scan func(driver.Rows) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	inList, netArgs := networkArgs()
	args := append([]any{int64(lookback.Seconds())}, netArgs...)

	rows, err := d.conn.Query(ctx, fmt.Sprintf(q, inList), args...)
	if err != nil {
		return d.wrapQueryErr(ctx, name, err)
	}
	defer rows.Close()

	if got := len(rows.Columns()); got != columns {
		d.logger.Warn("Unexpected result shape, ignoring result", "query", name, "columns", got, "expected", columns)
		return nil
	}

	for rows.Next() {
		if err := scan(rows); err != nil {
			d.logger.Warn("Dropping row that failed to scan", "query", name, "err", err)
		}
	}
	if err := rows.Err(); err != nil {
		return d.wrapQueryErr(ctx, name, err)
	}
	return nil
}

func (d *ClickhouseDB) wrapQueryErr(ctx context.Context, name string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out after %s: %w", utils.ErrSourceUnavailable, name, d.timeout, err)
	}
	return fmt.Errorf("%w: %s failed: %w", utils.ErrSourceUnavailable, name, err)
}

func (d *ClickhouseDB) QueryReorgs(ctx context.Context, lookback time.Duration) (types.ReorgRecords, error) {
	records := make(types.ReorgRecords, 0)
	err := d.query(ctx, "reorgs", reorgQuery, 3, lookback, func(rows driver.Rows) error {
		var raw reorgRow
		if err := rows.Scan(&raw.Slot, &raw.Network, &raw.Client); err != nil {
			return err
		}
		rec, err := raw.parse()
		if err != nil {
			d.logger.Warn("Dropping reorg row", "network", raw.Network, "client", raw.Client, "err", err)
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (d *ClickhouseDB) QueryBlockSeen(ctx context.Context, lookback time.Duration) (types.SlotObservations, error) {
	observations := make(types.SlotObservations, 0)
	err := d.query(ctx, "block_seen", blockSeenQuery, 4, lookback, func(rows driver.Rows) error {
		var raw blockSeenRow
		if err := rows.Scan(&raw.Slot, &raw.ObservedAt, &raw.Network, &raw.Client); err != nil {
			return err
		}
		obs, err := raw.parse()
		if err != nil {
			d.logger.Warn("Dropping block-seen row", "network", raw.Network, "client", raw.Client, "err", err)
			return nil
		}
		observations = append(observations, obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return observations, nil
}

func (d *ClickhouseDB) QueryCanonicalBlocks(ctx context.Context, lookback time.Duration) (types.CanonicalBlocks, error) {
	blocks := make(types.CanonicalBlocks, 0)
	err := d.query(ctx, "canonical_blocks", canonicalQuery, 5, lookback, func(rows driver.Rows) error {
		var raw canonicalRow
		if err := rows.Scan(&raw.Slot, &raw.BlockHash, &raw.ParentHash, &raw.Network, &raw.SeenAt); err != nil {
			return err
		}
		b, err := raw.parse()
		if err != nil {
			d.logger.Warn("Dropping canonical block row", "network", raw.Network, "err", err)
			return nil
		}
		blocks = append(blocks, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}
