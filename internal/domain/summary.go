package domain

import "time"

type TargetStatus string

const (
	StatusSuccess TargetStatus = "success"
	StatusFailed  TargetStatus = "failed"
)

// TargetOutcome is what the pagination engine reports for one target.
type TargetOutcome struct {
	Status     TargetStatus
	NewReviews int
	Duplicates int
	Malformed  int
	Pages      int
	Err        error // set when Status is failed
	Warning    error // fetch failure absorbed after partial success
}

type TargetSummary struct {
	Company    string       `json:"company"`
	NewReviews int          `json:"new_reviews"`
	OutputFile string       `json:"output_file"`
	Status     TargetStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	Warning    string       `json:"warning,omitempty"`
}

type InvalidInput struct {
	Identifier string `json:"identifier"`
	Error      string `json:"error"`
}

// RunSummary aggregates one run. Only the orchestrator mutates it.
type RunSummary struct {
	RunID           string                   `json:"run_id"`
	StartedAt       time.Time                `json:"started_at"`
	CompletedAt     time.Time                `json:"completed_at"`
	TotalTargets    int                      `json:"total_targets"`
	TotalNewReviews int                      `json:"total_new_reviews"`
	Targets         map[string]TargetSummary `json:"targets"`
	Order           []string                 `json:"-"`
	Invalid         []InvalidInput           `json:"invalid,omitempty"`
}

func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Targets:   map[string]TargetSummary{},
	}
}

// Record adds or replaces the entry for key, keeping first-seen order.
func (s *RunSummary) Record(key string, ts TargetSummary) {
	prev, existed := s.Targets[key]
	if existed {
		s.TotalNewReviews -= prev.NewReviews
	} else {
		s.Order = append(s.Order, key)
		s.TotalTargets++
	}
	s.Targets[key] = ts
	s.TotalNewReviews += ts.NewReviews
}
