package services

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

// WorkflowArgument is the JSON argument handed to the downstream workflow.
type WorkflowArgument struct {
	SessionID    string              `json:"sessionId"`
	Status       models.ReviewStatus `json:"status"`
	FindingCount int                 `json:"findingCount"`
}

// Notifier starts a downstream workflow after a review and returns the
// execution name.
type Notifier interface {
	Notify(ctx context.Context, arg WorkflowArgument) (string, error)
}

// executionCreator is the part of the executions client used here.
type executionCreator interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// WorkflowNotifier triggers a Cloud Workflows execution.
type WorkflowNotifier struct {
	client executionCreator
	parent string
}

// NewWorkflowNotifier creates a notifier for projects/<project>/locations/<location>/workflows/<workflowID>.
func NewWorkflowNotifier(client *executions.Client, projectID, location, workflowID string) *WorkflowNotifier {
	return newWorkflowNotifier(client, projectID, location, workflowID)
}

func newWorkflowNotifier(client executionCreator, projectID, location, workflowID string) *WorkflowNotifier {
	return &WorkflowNotifier{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}
}

func (n *WorkflowNotifier) Notify(ctx context.Context, arg WorkflowArgument) (string, error) {
	payload, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: n.parent,
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	exec, err := n.client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}
