package workflow

import (
	"context"
	"log/slog"

	"github.com/samzong/gco/internal/logging"
	"github.com/samzong/gco/internal/message"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded-success"
	StatusBlocked  Status = "blocked"
	StatusFatal    Status = "fatal"
)

type Flow string

const (
	FlowCommit  Flow = "commit"
	FlowCleanup Flow = "cleanup"
)

// SettingsUpdate is what the caller should persist after the run.
type SettingsUpdate struct {
	LastBranch string
}

// Outcome is the structured result of one pipeline run.
type Outcome struct {
	RunID  string
	Flow   Flow
	Status Status
	// Summary is a one-line cause or result.
	Summary string
	// Suggestion is a manual command for blocked and fatal runs.
	Suggestion string
	Branch     string
	Notes      []string
	Retryable  bool

	Message      *message.Commit
	Commit       string
	ReviewURL    string
	CleanupState string

	// SettingsUpdate is nil when nothing should be saved.
	SettingsUpdate *SettingsUpdate
}

// Failed reports whether the run stopped short of its goal.
func (o *Outcome) Failed() bool {
	return o.Status == StatusBlocked || o.Status == StatusFatal
}

func (o *Outcome) note(text string) {
	o.Notes = append(o.Notes, text)
}

func (o *Outcome) degrade(text string) {
	o.note(text)
	if o.Status == StatusSuccess || o.Status == "" {
		o.Status = StatusDegraded
	}
}

func blocked(summary, suggestion string) *Outcome {
	return &Outcome{Status: StatusBlocked, Summary: summary, Suggestion: suggestion}
}

func fatal(summary, suggestion string) *Outcome {
	return &Outcome{Status: StatusFatal, Summary: summary, Suggestion: suggestion}
}

// merge copies run-wide fields from acc into a terminal outcome.
func (o *Outcome) merge(acc *Outcome) *Outcome {
	o.RunID = acc.RunID
	o.Flow = acc.Flow
	if o.Branch == "" {
		o.Branch = acc.Branch
	}
	o.Notes = append(append([]string(nil), acc.Notes...), o.Notes...)
	if o.Message == nil {
		o.Message = acc.Message
	}
	if o.Commit == "" {
		o.Commit = acc.Commit
	}
	return o
}

func logOutcome(ctx context.Context, log *slog.Logger, o *Outcome) {
	level := slog.LevelInfo
	if o.Failed() {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, logging.RunFinished,
		"run", o.RunID,
		"flow", string(o.Flow),
		"status", string(o.Status),
		"branch", o.Branch,
		"summary", o.Summary,
	)
}
