package models

// These structs define the JSON payloads for HTTP requests and responses
// between callers (Cloud Workflow, HTTP clients, CLI) and the review service.

// ReviewRequest is the input for the review-document function and the
// POST /v1/reviews endpoint.
type ReviewRequest struct {
	SourceURI   string   `json:"sourceUri"`
	UserID      string   `json:"userId,omitempty"`
	ForceOCR    bool     `json:"forceOcr,omitempty"`
	Agents      []string `json:"agents,omitempty"`
	ExecutionID string   `json:"executionId,omitempty"`
}

// ReviewResponse is the output of a review run.
type ReviewResponse struct {
	Status    ReviewStatus   `json:"status"`
	SessionID string         `json:"sessionId"`
	Content   ContentSummary `json:"content"`
	Review    *ReviewResult  `json:"review"`
	ReportURI string         `json:"reportUri,omitempty"`
}

// ProviderStatus is the connection test result for one provider.
type ProviderStatus struct {
	Available    bool   `json:"available"`
	Latency      string `json:"latency,omitempty"`
	SampleOutput string `json:"sampleOutput,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ProviderHealthResponse is the output of the provider health endpoint.
type ProviderHealthResponse struct {
	Providers map[string]ProviderStatus `json:"providers"`
}

// GCSEvent is the payload of a GCS object-finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
