// Package storage persists review sessions and their findings.
package storage

import (
	"context"
	"errors"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// DefaultRecentLimit caps RecentSessions when the caller passes zero.
const DefaultRecentLimit = 20

// SessionUpdate carries the fields to change on a session. Zero values are
// left untouched.
type SessionUpdate struct {
	Status           string
	ErrorDetails     string
	ProcessingMethod string
	PageCount        int
	FailedPages      []int
}

// Store is the persistence collaborator of the review service.
type Store interface {
	// CreateSession stores a new session and returns its ID.
	CreateSession(ctx context.Context, session *models.ReviewSession) (string, error)
	UpdateSession(ctx context.Context, id string, update SessionUpdate) error
	// SaveReview records the findings of a finished run and moves the
	// session to the run's status.
	SaveReview(ctx context.Context, id string, result *models.ReviewResult) error
	GetSession(ctx context.Context, id string) (*models.ReviewSession, error)
	// FindByHash returns the most recent session for a file hash, or ErrNotFound.
	FindByHash(ctx context.Context, fileHash string) (*models.ReviewSession, error)
	Findings(ctx context.Context, id string) ([]models.Finding, error)
	// RecentSessions lists sessions newest first.
	RecentSessions(ctx context.Context, limit int) ([]*models.ReviewSession, error)
}

// sessionStatus maps a run status onto the stored session status.
func sessionStatus(s models.ReviewStatus) string {
	switch s {
	case models.StatusCompleted:
		return models.SessionCompleted
	case models.StatusPartial:
		return models.SessionPartial
	case models.StatusFailed:
		return models.SessionFailed
	default:
		return models.SessionProcessing
	}
}

func recentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
