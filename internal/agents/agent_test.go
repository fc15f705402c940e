package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/llm"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

type fakeGenerator struct {
	response string
	err      error

	mu      sync.Mutex
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ int, _ float32, _ string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.response, g.err
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testOptions(gen Generator) Options {
	return Options{
		Generator:      gen,
		MaxTokens:      500,
		Temperature:    0.3,
		MaxPromptChars: 4000,
		Logger:         logging.Discard(),
		Now:            func() time.Time { return fixedNow },
	}
}

func contextFor(text, format string) *ReviewContext {
	content := models.NewNormalizedContent("guide."+format, format, int64(len(text)),
		[]string{text},
		[]models.PageResult{{PageIndex: 0, Method: models.PageDirectText, Confidence: 1, Succeeded: true}},
		time.Millisecond)
	return NewReviewContext("session-1", content, nil)
}

const aiResponse = `FINDINGS:
[Error] - Step 4: Terminal block polarity is reversed
Suggestion: Swap the +12V and GND labels
Confidence: 0.5

---
[Warning] - Page 2: Torque value missing for M4 screws
Suggestion: State 1.2 Nm
Confidence: 0.7

---
[Info] - Introduction: Add a product photo`

func TestTechnical_DiscardsFindingsBelowThreshold(t *testing.T) {
	gen := &fakeGenerator{response: aiResponse}
	agent := NewTechnical(testOptions(gen))

	findings, err := agent.Review(context.Background(), contextFor("Mount the bracket.", "txt"))
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, "Torque value missing for M4 screws", findings[0].Description)
	assert.Equal(t, 0.7, findings[0].Confidence)
	assert.Equal(t, "Page 2", findings[0].Location)
	assert.Equal(t, "State 1.2 Nm", findings[0].Suggestion)

	assert.Equal(t, models.SeverityInfo, findings[1].Severity)
	assert.Equal(t, DefaultAIConfidence, findings[1].Confidence)

	for _, f := range findings {
		assert.Equal(t, models.SourceAI, f.Source)
		assert.Equal(t, NameTechnical, f.AgentName)
		assert.Equal(t, "session-1", f.SessionID)
		assert.Equal(t, "technical", f.Category)
		assert.Equal(t, fixedNow, f.CreatedAt)
	}
}

func TestFormatting_HigherThresholdDropsMore(t *testing.T) {
	gen := &fakeGenerator{response: aiResponse}
	findings, err := NewFormatting(testOptions(gen)).Review(context.Background(), contextFor("Mount the bracket.", "txt"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityInfo, findings[0].Severity)
}

func TestBase_ProviderFailureFallsBackToRules(t *testing.T) {
	unavailable := &llm.UnavailableError{Attempts: []llm.Attempt{
		{Provider: "groq", Err: errors.New("connection refused")},
		{Provider: "vertex", Err: errors.New("connection refused")},
	}}
	gen := &fakeGenerator{err: unavailable}
	text := "Connect the power wires to the terminal. Drill two holes."

	for _, name := range []string{NameTechnical, NameFormatting, NameBrand, NameDiagram} {
		agent, err := New(name, testOptions(gen))
		require.NoError(t, err)

		findings, err := agent.Review(context.Background(), contextFor(text, "txt"))
		require.NoError(t, err, name)
		require.NotEmpty(t, findings, name)
		for _, f := range findings {
			assert.Equal(t, models.SourceRules, f.Source, name)
			assert.Equal(t, name, f.AgentName)
		}
	}
}

func TestBase_UnparseableResponseFallsBackToRules(t *testing.T) {
	gen := &fakeGenerator{response: "I reviewed the document and it looks fine overall."}
	findings, err := NewTechnical(testOptions(gen)).Review(context.Background(), contextFor("Read the manual", "txt"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SourceRules, findings[0].Source)
	assert.Equal(t, "Rule-based checks found no issues", findings[0].Description)
}

func TestBase_EmptyFindingsSectionIsValid(t *testing.T) {
	gen := &fakeGenerator{response: "FINDINGS:\nNone."}
	findings, err := NewTechnical(testOptions(gen)).Review(context.Background(), contextFor("Read the manual", "txt"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestBase_CanceledContextIsAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{err: context.Canceled}

	_, err := NewDiagram(testOptions(gen)).Review(ctx, contextFor("text", "txt"))
	assert.ErrorIs(t, err, context.Canceled)
}

// hangingGenerator blocks until its context ends.
type hangingGenerator struct {
	deadline chan time.Time
}

func (g *hangingGenerator) Generate(ctx context.Context, _ string, _ int, _ float32, _ string) (string, error) {
	if dl, ok := ctx.Deadline(); ok {
		g.deadline <- dl
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestBase_DeadlineDuringAICallStillRunsRules(t *testing.T) {
	gen := &hangingGenerator{deadline: make(chan time.Time, 1)}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	outer, _ := ctx.Deadline()

	findings, err := NewTechnical(testOptions(gen)).Review(ctx, contextFor("Mount the bracket.", "txt"))
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.Equal(t, models.SourceRules, f.Source)
	}
	assert.True(t, (<-gen.deadline).Before(outer), "AI call must end before the agent deadline")
}

func TestSummary_DeadlineDuringAICallStillSummarizes(t *testing.T) {
	gen := &hangingGenerator{deadline: make(chan time.Time, 1)}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	summary, err := NewSummary(testOptions(gen)).Summarize(ctx, contextFor("text", "txt"))
	require.NoError(t, err)
	assert.Equal(t, models.SourceRules, summary.Source)
	assert.NotEmpty(t, summary.Narrative)
}

func TestBase_PromptTruncatesDocument(t *testing.T) {
	gen := &fakeGenerator{response: "FINDINGS:"}
	opts := testOptions(gen)
	opts.MaxPromptChars = 10

	_, err := NewBrand(opts, nil).Review(context.Background(), contextFor(strings.Repeat("x", 50)+"TAIL", "txt"))
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Brand and Presentation Reviewer")
	assert.Contains(t, gen.prompts[0], "Document to review:\n"+strings.Repeat("x", 10))
	assert.NotContains(t, gen.prompts[0], "TAIL")
}

func TestReviewContext_IsACopy(t *testing.T) {
	prior := []models.Finding{{Description: "a"}}
	rc := contextFor("one", "txt").WithPriorFindings(prior)
	prior[0].Description = "changed"

	got := rc.PriorFindings()
	assert.Equal(t, "a", got[0].Description)
	got[0].Description = "mutated"
	assert.Equal(t, "a", rc.PriorFindings()[0].Description)

	pages := rc.Pages()
	pages[0] = "mutated"
	assert.Equal(t, "one", rc.Pages()[0])
	assert.Equal(t, 1, rc.PageCount())
	assert.Equal(t, "txt", rc.Format())
}

func TestParseFindings(t *testing.T) {
	t.Run("unbracketed header", func(t *testing.T) {
		findings, err := ParseFindings("FINDINGS:\nWarning - Section 3: Missing cable length\nSuggestion: Add it")
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, models.SeverityWarning, findings[0].Severity)
		assert.Equal(t, "Section 3", findings[0].Location)
	})

	t.Run("no location", func(t *testing.T) {
		findings, err := ParseFindings("[Critical] - Document lacks a wiring table")
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, models.SeverityError, findings[0].Severity)
		assert.Equal(t, "Document", findings[0].Location)
		assert.Equal(t, "Document lacks a wiring table", findings[0].Description)
	})

	t.Run("confidence is clamped", func(t *testing.T) {
		findings, err := ParseFindings("FINDINGS:\n[Info] - Page 1: Fine\nConfidence: 7")
		require.NoError(t, err)
		assert.Equal(t, 1.0, findings[0].Confidence)
	})

	t.Run("prose is unparseable", func(t *testing.T) {
		_, err := ParseFindings("Looks good to me.")
		assert.ErrorIs(t, err, ErrUnparseable)
	})
}

func TestNew_UnknownAgent(t *testing.T) {
	_, err := New("legal", testOptions(nil))
	assert.ErrorIs(t, err, ErrUnknownAgent)

	built, err := Build(Names(), testOptions(nil))
	require.NoError(t, err)
	require.Len(t, built, 5)
	assert.Equal(t, NameSummary, built[4].Name())
}
