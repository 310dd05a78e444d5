package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/baderkha/sql2mongo/pkg/migrate/state"
	"github.com/hashicorp/go-multierror"
)

const (
	SummaryFile  = "summary.json"
	FailuresFile = "failures.jsonl"
)

// ModelResult : outcome of copying one model
type ModelResult struct {
	Model      string            `json:"model"`
	Collection string            `json:"collection"`
	Status     state.RunLogState `json:"status"`
	Error      string            `json:"error,omitempty"`
	state.Counts
}

type Summary struct {
	RunID      string        `json:"run_id"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Models     []ModelResult `json:"models"`
	Totals     state.Counts  `json:"totals"`
}

// Add : appends a model result and folds it into the totals
func (s *Summary) Add(r ModelResult) {
	s.Models = append(s.Models, r)
	s.Totals.Read += r.Read
	s.Totals.Migrated += r.Migrated
	s.Totals.Failed += r.Failed
}

// Failure : a row that could not be saved
type Failure struct {
	Model string `json:"model"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error"`
}

// Sink : somewhere reports are kept
type Sink interface {
	Write(ctx context.Context, name string, body []byte) error
}

// Publish : writes <run_id>/summary.json and <run_id>/failures.jsonl to every sink
func Publish(ctx context.Context, sinks []Sink, s *Summary, failures []Failure) error {
	summary, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	var lines bytes.Buffer
	enc := json.NewEncoder(&lines)
	for _, f := range failures {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}

	var finalErr error
	for _, sink := range sinks {
		if err := sink.Write(ctx, path.Join(s.RunID, SummaryFile), summary); err != nil {
			finalErr = multierror.Append(finalErr, fmt.Errorf("report: %s : %w", SummaryFile, err))
		}
		if err := sink.Write(ctx, path.Join(s.RunID, FailuresFile), lines.Bytes()); err != nil {
			finalErr = multierror.Append(finalErr, fmt.Errorf("report: %s : %w", FailuresFile, err))
		}
	}
	return finalErr
}
