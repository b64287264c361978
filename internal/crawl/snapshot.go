package crawl

import (
	"time"

	"github.com/kalambet/laiwatch/internal/compliance"
)

// Snapshot is a consistent copy of the controller state. Every field is
// taken in one critical section, so processed links never run ahead of
// the records they produced.
type Snapshot struct {
	RunID      string                     `json:"run_id,omitempty"`
	Seed       string                     `json:"seed,omitempty"`
	State      State                      `json:"state"`
	StartedAt  *time.Time                 `json:"started_at,omitempty"`
	FinishedAt *time.Time                 `json:"finished_at,omitempty"`
	Progress   Progress                   `json:"progress"`
	Records    []compliance.Record        `json:"records"`
	Scores     []compliance.CategoryScore `json:"scores"`
	Summary    compliance.Summary         `json:"summary"`
	Log        []string                   `json:"log"`
}

// Snapshot returns the current state. It is safe to call from any
// goroutine at any time.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := c.ledger.Records()
	s := Snapshot{
		RunID:    c.runID,
		Seed:     c.seed,
		State:    c.state,
		Progress: c.progress,
		Records:  records,
		Scores:   compliance.Scores(records),
		Summary:  compliance.Summarize(records),
		Log:      c.activity.Lines(),
	}
	if s.Scores == nil {
		s.Scores = []compliance.CategoryScore{}
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		s.StartedAt = &t
	}
	if !c.finishedAt.IsZero() {
		t := c.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// Terminal reports whether the snapshot was taken after its run ended.
func (s Snapshot) Terminal() bool {
	return s.State == StateCompleted || s.State == StateCancelled
}
