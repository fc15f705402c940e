package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/gcp"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// FindingsCollection is the subcollection holding a session's findings.
const FindingsCollection = "findings"

var _ Store = (*FirestoreStore)(nil)

// FirestoreStore keeps one document per session in a collection, with the
// findings written as a subcollection of that document.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreStore creates a store over an existing client.
func NewFirestoreStore(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreStore{client: client, collection: collection, logger: logger}
}

func (s *FirestoreStore) sessions() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStore) CreateSession(ctx context.Context, session *models.ReviewSession) (string, error) {
	doc := *session
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Status == "" {
		doc.Status = models.SessionProcessing
	}
	docRef, _, err := s.sessions().Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create review session: %w", err)
	}
	return docRef.ID, nil
}

func (s *FirestoreStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) error {
	updates := updatesFor(update)
	if len(updates) == 0 {
		return nil
	}
	if _, err := s.sessions().Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, notFound(err))
	}
	return nil
}

func (s *FirestoreStore) SaveReview(ctx context.Context, id string, result *models.ReviewResult) error {
	if result == nil {
		return errNilResult
	}
	docRef := s.sessions().Doc(id)
	logCtx := s.logger.With("sessionId", id, "findingCount", len(result.Findings))

	refs := make([]*firestore.DocumentRef, len(result.Findings))
	for i := range result.Findings {
		refs[i] = docRef.Collection(FindingsCollection).NewDoc()
	}
	writeErr := gcp.SetAll(ctx, s.client, refs, result.Findings)
	if writeErr != nil {
		logCtx.Error("Failed to write one or more findings", "error", writeErr)
	}

	updates := []firestore.Update{
		{Path: "status", Value: sessionStatus(result.Status)},
		{Path: "findingCount", Value: len(result.Findings)},
		{Path: "totalProcessingTime", Value: result.TotalDuration},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return errors.Join(writeErr, fmt.Errorf("failed to update session %s: %w", id, notFound(err)))
	}
	if writeErr != nil {
		return fmt.Errorf("failed to save findings: %w", writeErr)
	}
	logCtx.Info("Review saved to Firestore.")
	return nil
}

func (s *FirestoreStore) GetSession(ctx context.Context, id string) (*models.ReviewSession, error) {
	snap, err := s.sessions().Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, notFound(err))
	}
	return decodeSession(snap)
}

func (s *FirestoreStore) FindByHash(ctx context.Context, fileHash string) (*models.ReviewSession, error) {
	docs, err := s.sessions().Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions by hash: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, fileHash)
	}
	return decodeSession(docs[0])
}

func (s *FirestoreStore) Findings(ctx context.Context, id string) ([]models.Finding, error) {
	it := s.sessions().Doc(id).Collection(FindingsCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var out []models.Finding
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list findings for %s: %w", id, err)
		}
		var f models.Finding
		if err := snap.DataTo(&f); err != nil {
			return nil, fmt.Errorf("failed to decode finding %s: %w", snap.Ref.ID, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *FirestoreStore) RecentSessions(ctx context.Context, limit int) ([]*models.ReviewSession, error) {
	it := s.sessions().OrderBy("createdAt", firestore.Desc).Limit(recentLimit(limit)).Documents(ctx)
	defer it.Stop()

	var out []*models.ReviewSession
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		session, err := decodeSession(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func decodeSession(snap *firestore.DocumentSnapshot) (*models.ReviewSession, error) {
	var session models.ReviewSession
	if err := snap.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", snap.Ref.ID, err)
	}
	session.ID = snap.Ref.ID
	return &session, nil
}

func updatesFor(u SessionUpdate) []firestore.Update {
	var updates []firestore.Update
	if u.Status != "" {
		updates = append(updates, firestore.Update{Path: "status", Value: u.Status})
	}
	if u.ErrorDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: u.ErrorDetails})
	}
	if u.ProcessingMethod != "" {
		updates = append(updates, firestore.Update{Path: "processingMethod", Value: u.ProcessingMethod})
	}
	if u.PageCount > 0 {
		updates = append(updates, firestore.Update{Path: "pageCount", Value: u.PageCount})
	}
	if len(u.FailedPages) > 0 {
		updates = append(updates, firestore.Update{Path: "failedPages", Value: u.FailedPages})
	}
	return updates
}

// notFound maps a gRPC NotFound onto ErrNotFound.
func notFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
