package pipeline

import (
	"fmt"
	"strings"
	"time"

	"pushdown/internal/policy"
)

// Outcome is the terminal state of a successful run.
type Outcome string

const (
	// OutcomeCompleted means the flattened table was created and populated.
	OutcomeCompleted Outcome = "completed"
	// OutcomeEmptySchema means no column survived discovery and policy; no
	// table was touched and the landing store was still cleaned.
	OutcomeEmptySchema Outcome = "empty_schema"
)

// ExcludedColumn is a discovered key kept out of the flattened table.
type ExcludedColumn struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report describes one run.
type Report struct {
	RunID   string  `json:"run_id"`
	Table   string  `json:"table"`
	Outcome Outcome `json:"outcome,omitempty"`
	// SchemaOutcome is the flatten build result: ready, no_keys or
	// all_excluded.
	SchemaOutcome string `json:"schema_outcome,omitempty"`

	Pages        int   `json:"pages"`
	Records      int64 `json:"records"`
	HitPageLimit bool  `json:"hit_page_limit"`

	Discovered int              `json:"discovered"`
	Included   []string         `json:"included"`
	Excluded   []ExcludedColumn `json:"excluded"`
	FilterKey  string           `json:"filter_key,omitempty"`
	Filter     string           `json:"filter"`
	// Columns is the final table shape; Demoted lists columns stored as raw
	// JSON because some value did not fit the inferred type.
	Columns []string `json:"columns,omitempty"`
	Demoted []string `json:"demoted,omitempty"`

	Elements  int64 `json:"elements"`
	Kept      int64 `json:"kept"`
	Filtered  int64 `json:"filtered"`
	Fallbacks int64 `json:"fallbacks"`
	Inserted  int64 `json:"inserted"`
	// Flattened is the row count of the target table after population.
	Flattened int64 `json:"flattened"`

	Cleaned  bool          `json:"cleaned"`
	Duration time.Duration `json:"duration"`
}

func (rep *Report) recordPlan(plan policy.Plan) {
	rep.Discovered = len(plan.Columns)
	rep.Included = rep.Included[:0]
	rep.Excluded = rep.Excluded[:0]
	for _, c := range plan.Columns {
		if c.Included {
			rep.Included = append(rep.Included, c.Name)
			continue
		}
		rep.Excluded = append(rep.Excluded, ExcludedColumn{Key: c.Key, Name: c.Name, Reason: c.Reason})
	}
	if plan.FilterKey != nil {
		rep.FilterKey = plan.FilterKey.Name
	}
}

// Summary renders the report as one log line.
func (rep *Report) Summary() string {
	excluded := make([]string, len(rep.Excluded))
	for i, c := range rep.Excluded {
		excluded[i] = c.Name
	}
	return fmt.Sprintf(
		"summary: run=%s outcome=%s pages=%d records=%d discovered=%d included=%d excluded=%d [%s] filter=%q kept=%d filtered=%d fallbacks=%d rows=%d elapsed=%s",
		rep.RunID, rep.Outcome, rep.Pages, rep.Records, rep.Discovered, len(rep.Included), len(rep.Excluded),
		strings.Join(excluded, ","), rep.Filter, rep.Kept, rep.Filtered, rep.Fallbacks, rep.Flattened,
		rep.Duration.Truncate(time.Millisecond),
	)
}
