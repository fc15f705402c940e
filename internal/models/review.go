package models

import "time"

// ReviewStatus is the terminal status of one review run.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusRunning   ReviewStatus = "running"
	StatusCompleted ReviewStatus = "completed"
	StatusPartial   ReviewStatus = "partial"
	StatusFailed    ReviewStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ReviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// AgentResult is the outcome of one agent within a run.
type AgentResult struct {
	Agent     string        `json:"agent"`
	Findings  []Finding     `json:"findings"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Summary is the consolidated narrative produced after all other agents finish.
type Summary struct {
	Narrative  string    `json:"narrative"`
	Priorities []Finding `json:"priorities"`
	Source     string    `json:"source"`
}

// ReviewResult aggregates one review run. AgentResults follows the configured
// agent order, not completion order.
type ReviewResult struct {
	SessionID     string        `json:"sessionId"`
	AgentResults  []AgentResult `json:"agentResults"`
	Findings      []Finding     `json:"findings"`
	Summary       *Summary      `json:"summary,omitempty"`
	Status        ReviewStatus  `json:"status"`
	TotalDuration time.Duration `json:"totalDuration"`
}

// ByAgent returns the findings produced by the named agent.
func (r *ReviewResult) ByAgent(name string) ([]Finding, bool) {
	for _, ar := range r.AgentResults {
		if ar.Agent == name {
			return ar.Findings, true
		}
	}
	return nil, false
}

// AgentNames returns agent names in run order.
func (r *ReviewResult) AgentNames() []string {
	names := make([]string, 0, len(r.AgentResults))
	for _, ar := range r.AgentResults {
		names = append(names, ar.Agent)
	}
	return names
}

// CountBySeverity tallies the flattened findings.
func (r *ReviewResult) CountBySeverity() map[Severity]int {
	counts := map[Severity]int{SeverityError: 0, SeverityWarning: 0, SeverityInfo: 0}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
