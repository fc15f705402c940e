package gcp

import (
	"errors"
	"net/http"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://manuals/site-a/install.pdf")
	require.NoError(t, err)
	assert.Equal(t, "manuals", bucket)
	assert.Equal(t, "site-a/install.pdf", object)

	for _, bad := range []string{"manuals/install.pdf", "gs://manuals", "gs:///install.pdf", "gs://manuals/"} {
		_, _, err := ParseGCSURI(bad)
		assert.ErrorIs(t, err, ErrNotGCSURI, bad)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "FINDINGS:\nnone", StripFences("```markdown\nFINDINGS:\nnone\n```"))
	assert.Equal(t, "plain", StripFences("  plain  "))
	assert.Equal(t, "a b", StripFences("```a b```"))
}

func TestResponseText(t *testing.T) {
	text, n := ResponseText(nil)
	assert.Empty(t, text)
	assert.Zero(t, n)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello, "), genai.Text("world ")}},
		}},
	}
	text, n = ResponseText(resp)
	assert.Equal(t, "Hello, world", text)
	assert.Equal(t, 2, n)
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusPreconditionFailed}))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}
