package workflow

import (
	"context"

	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/repostate"
)

// StatusReport is a read-only report of the repository and recorded settings.
type StatusReport struct {
	State      *repostate.State
	LastBranch string
}

// ReadStatus snapshots the repository without changing it.
func ReadStatus(ctx context.Context, reader StateReader, cfg *config.Config) (*StatusReport, error) {
	st, err := reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{State: st}
	if cfg != nil {
		report.LastBranch = cfg.LastBranch
	}
	return report, nil
}
