package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"slotwatch/config"
	"slotwatch/db"
	"slotwatch/slot"
	"slotwatch/snapshot"
	"slotwatch/types"
)

// Pipeline is one reconciliation pass from the event source to the snapshot store.
// All of its collaborators are injected; it reads no global configuration.
type Pipeline struct {
	source   db.EventSource
	store    *snapshot.Store
	clocks   slot.Clocks
	settings *config.Settings
	logger   *slog.Logger
}

func New(source db.EventSource, store *snapshot.Store, settings *config.Settings, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source:   source,
		store:    store,
		clocks:   slot.NewClocks(settings),
		settings: settings,
		logger:   logger,
	}
}

// Result summarizes one run.
type Result struct {
	Reorgs          int
	Observations    int
	CanonicalBlocks int

	Rows      int
	Reorged   int
	Joined    int
	Estimated int

	Writes   []snapshot.WriteResult
	Duration time.Duration
}

func (r *Result) Written() int {
	n := 0
	for _, w := range r.Writes {
		n += w.Written
	}
	return n
}

func (r *Result) Failed() int {
	n := 0
	for _, w := range r.Writes {
		n += w.Failed
	}
	return n
}

// Run reads the three event windows, reconciles them and writes one snapshot per (network, slot).
// Any source error aborts the run before a single file is written. An empty block-seen window
// is a clean no-op.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	reorgs, err := p.source.QueryReorgs(ctx, p.settings.ReorgLookback)
	if err != nil {
		return nil, fmt.Errorf("query reorgs: %w", err)
	}
	res.Reorgs = len(reorgs)
	index := slot.BuildReorgIndex(reorgs)
	p.logger.Info("Built reorg index", "records", len(reorgs), "entries", index.Len())

	observations, err := p.source.QueryBlockSeen(ctx, p.settings.BlockLookback)
	if err != nil {
		return nil, fmt.Errorf("query block-seen events: %w", err)
	}
	res.Observations = len(observations)
	if len(observations) == 0 {
		p.logger.Info("No block-seen events in window, nothing to reconcile", "lookback", p.settings.BlockLookback.String())
		res.Duration = time.Since(start)
		return res, nil
	}

	blocks, err := p.source.QueryCanonicalBlocks(ctx, p.settings.CanonicalLookback)
	if err != nil {
		return nil, fmt.Errorf("query canonical blocks: %w", err)
	}
	res.CanonicalBlocks = len(blocks)

	rows := slot.Reconcile(observations, p.settings.SlotWindow)
	res.Rows = len(rows)
	res.Reorged = slot.ApplyReorgs(rows, index)
	res.Joined = slot.JoinCanonical(rows, blocks)
	if err := slot.Normalize(rows, p.clocks); err != nil {
		return nil, fmt.Errorf("normalize timestamps: %w", err)
	}
	res.Estimated = countEstimated(rows)

	res.Writes = p.store.Write(ctx, rows)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("write snapshots: run interrupted after %d slot files: %w", res.Written(), err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func countEstimated(rows types.ReconciledSlotRows) int {
	n := 0
	for _, r := range rows {
		if r.Estimated {
			n++
		}
	}
	return n
}

// RunAndLog runs once and logs the outcome; errors are logged, not returned, so a scheduler
// simply tries again on its next tick.
func (p *Pipeline) RunAndLog(ctx context.Context) {
	res, err := p.Run(ctx)
	if err != nil {
		p.logger.Error("Pipeline run failed, keeping previous snapshots", "err", err)
		return
	}
	p.logger.Info("Pipeline run done",
		"reorgs", res.Reorgs,
		"observations", res.Observations,
		"canonical_blocks", res.CanonicalBlocks,
		"rows", res.Rows,
		"reorged", res.Reorged,
		"joined", res.Joined,
		"estimated", res.Estimated,
		"written", res.Written(),
		"write_failed", res.Failed(),
		"duration", res.Duration.String(),
	)
}
