package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

var (
	errNilResult = errors.New("review result is nil")

	_ Store = (*MemoryStore)(nil)
)

// MemoryStore keeps sessions in process memory. It backs the CLI and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.ReviewSession
	findings map[string][]models.Finding
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.ReviewSession),
		findings: make(map[string][]models.Finding),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session *models.ReviewSession) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clone(*session)
	stored.ID = uuid.NewString()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.Status == "" {
		stored.Status = models.SessionProcessing
	}
	s.sessions[stored.ID] = stored
	return stored.ID, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, id string, update SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if update.Status != "" {
		session.Status = update.Status
	}
	if update.ErrorDetails != "" {
		session.ErrorDetails = update.ErrorDetails
	}
	if update.ProcessingMethod != "" {
		session.ProcessingMethod = update.ProcessingMethod
	}
	if update.PageCount > 0 {
		session.PageCount = update.PageCount
	}
	if len(update.FailedPages) > 0 {
		session.FailedPages = slices.Clone(update.FailedPages)
	}
	s.sessions[id] = session
	return nil
}

func (s *MemoryStore) SaveReview(_ context.Context, id string, result *models.ReviewResult) error {
	if result == nil {
		return errNilResult
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	session.Status = sessionStatus(result.Status)
	session.FindingCount = len(result.Findings)
	session.TotalProcessingTime = result.TotalDuration
	s.sessions[id] = session
	s.findings[id] = append(s.findings[id], result.Findings...)
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.ReviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := clone(session)
	return &out, nil
}

func (s *MemoryStore) FindByHash(_ context.Context, fileHash string) (*models.ReviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.ReviewSession
	for _, session := range s.sessions {
		if session.FileHash != fileHash {
			continue
		}
		if found == nil || session.CreatedAt.After(found.CreatedAt) {
			c := clone(session)
			found = &c
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, fileHash)
	}
	return found, nil
}

func (s *MemoryStore) Findings(_ context.Context, id string) ([]models.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return slices.Clone(s.findings[id]), nil
}

func (s *MemoryStore) RecentSessions(_ context.Context, limit int) ([]*models.ReviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ReviewSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		c := clone(session)
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *models.ReviewSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if n := recentLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func clone(s models.ReviewSession) models.ReviewSession {
	s.FailedPages = slices.Clone(s.FailedPages)
	return s
}
