package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paramforge/paramforge/pkg/engine"
)

// FromResult converts an exploration result into its stored form.
func FromResult(res *engine.ExploreResult) (*Exploration, []ConfigurationRow, error) {
	if res == nil {
		return nil, nil, fmt.Errorf("no exploration result")
	}
	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode stats: %w", err)
	}

	exp := &Exploration{
		ID:        res.RunID,
		Component: res.Component,
		Strategy:  string(res.Strategy),
		Status:    string(res.Status),
		Stats:     string(stats),
		StartedAt: res.StartedAt,
	}
	if !res.CompletedAt.IsZero() {
		completed := res.CompletedAt
		exp.CompletedAt = &completed
	}
	for _, w := range res.Warnings {
		exp.Warnings = append(exp.Warnings, w.Error())
	}

	rows := make([]ConfigurationRow, 0, len(res.Configurations))
	for i, cfg := range res.Configurations {
		if i == 0 {
			exp.Params = cfg.Names()
		}
		rows = append(rows, ConfigurationRow{
			ExplorationID: res.RunID,
			Ordinal:       i,
			Key:           cfg.Key(),
			Values:        cfg.Row(),
		})
	}
	return exp, rows, nil
}

// SaveResult stores res and returns the stored exploration.
func SaveResult(ctx context.Context, s Store, res *engine.ExploreResult) (*Exploration, error) {
	exp, rows, err := FromResult(res)
	if err != nil {
		return nil, err
	}
	if err := s.SaveExploration(ctx, exp, rows); err != nil {
		return nil, err
	}
	return exp, nil
}

// DecodeStats parses the stored stats blob of exp.
func DecodeStats(exp *Exploration) (engine.ExploreStats, error) {
	var stats engine.ExploreStats
	if exp.Stats == "" {
		return stats, nil
	}
	if err := json.Unmarshal([]byte(exp.Stats), &stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats of %s: %w", exp.ID, err)
	}
	return stats, nil
}
