package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
)

// NewFirestoreClient creates a Firestore client for the given project and
// database. An empty databaseID selects the default database.
func NewFirestoreClient(ctx context.Context, projectID, databaseID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// SetAll writes every document through a BulkWriter and waits for all of
// them. Individual write failures are joined into the returned error.
func SetAll[T any](ctx context.Context, client *firestore.Client, refs []*firestore.DocumentRef, docs []T) error {
	if len(refs) != len(docs) {
		return fmt.Errorf("SetAll: %d refs for %d documents", len(refs), len(docs))
	}
	if len(refs) == 0 {
		return nil
	}

	bw := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	var errs []error
	for i, ref := range refs {
		job, err := bw.Set(ref, docs[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to enqueue %s: %w", ref.Path, err))
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
