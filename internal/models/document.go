package models

import "time"

// Session status values stored on ReviewSession.Status.
const (
	SessionProcessing = "processing"
	SessionCompleted  = "completed"
	SessionPartial    = "partial"
	SessionFailed     = "failed"
)

// ReviewSession represents the main record for a document review job in Firestore.
// It tracks the overall status and processing metadata of the file.
type ReviewSession struct {
	ID                  string        `firestore:"-" json:"id"`
	FileHash            string        `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	OriginalFilename    string        `firestore:"originalFilename,omitempty" json:"originalFilename,omitempty"`
	SourceURI           string        `firestore:"sourceUri,omitempty" json:"sourceUri,omitempty"`
	UserID              string        `firestore:"userId,omitempty" json:"userId,omitempty"`
	Status              string        `firestore:"status,omitempty" json:"status,omitempty"`
	ProcessingMethod    string        `firestore:"processingMethod,omitempty" json:"processingMethod,omitempty"`
	ErrorDetails        string        `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	PageCount           int           `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	FailedPages         []int         `firestore:"failedPages,omitempty" json:"failedPages,omitempty"`
	FindingCount        int           `firestore:"findingCount,omitempty" json:"findingCount,omitempty"`
	TotalProcessingTime time.Duration `firestore:"totalProcessingTime,omitempty" json:"totalProcessingTime,omitempty"`
	WorkflowExecutionID string        `firestore:"workflowExecutionId,omitempty" json:"workflowExecutionId,omitempty"` // For traceability
	CreatedAt           time.Time     `firestore:"createdAt,omitempty" json:"createdAt"`
}
