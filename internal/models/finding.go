package models

import (
	"strings"
	"time"
)

// Severity of a reviewer observation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps free-form model output onto a known severity.
// Anything unrecognized is treated as a warning.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), "[]*")) {
	case "error", "critical", "high":
		return SeverityError
	case "info", "low", "suggestion":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// Rank orders severities from most to least urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Finding sources.
const (
	SourceAI    = "ai"
	SourceRules = "rules"
)

// Finding is one reviewer observation. It is stored as a Firestore
// sub-document of the review session.
type Finding struct {
	SessionID   string    `firestore:"sessionId" json:"sessionId"`
	AgentName   string    `firestore:"agentName" json:"agentName"`
	Severity    Severity  `firestore:"severity" json:"severity"`
	Category    string    `firestore:"category" json:"category"`
	Description string    `firestore:"description" json:"description"`
	Location    string    `firestore:"location" json:"location"`
	Suggestion  string    `firestore:"suggestion,omitempty" json:"suggestion,omitempty"`
	Confidence  float64   `firestore:"confidence" json:"confidence"`
	Source      string    `firestore:"source" json:"source"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}
