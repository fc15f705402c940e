package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/models"
)

func ruleFindings(t *testing.T, a Agent, text, format string) []models.Finding {
	t.Helper()
	findings, err := a.Review(context.Background(), contextFor(text, format))
	require.NoError(t, err)
	return findings
}

func categories(findings []models.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Category
	}
	return out
}

func TestTechnicalRules(t *testing.T) {
	agent := NewTechnical(testOptions(nil))

	t.Run("wiring without safety warning", func(t *testing.T) {
		got := ruleFindings(t, agent, "Run the wiring to the reader. Use a screwdriver.", "txt")
		assert.Contains(t, categories(got), "safety")
		assert.NotContains(t, categories(got), "tools")
	})

	t.Run("safety warning present", func(t *testing.T) {
		got := ruleFindings(t, agent, "WARNING: isolate the supply. Run the wiring. Use a screwdriver.", "txt")
		assert.NotContains(t, categories(got), "safety")
	})

	t.Run("actions without tools", func(t *testing.T) {
		got := ruleFindings(t, agent, "Mount the bracket and install the cover.", "txt")
		assert.Contains(t, categories(got), "tools")
	})

	t.Run("dimension without unit", func(t *testing.T) {
		got := ruleFindings(t, agent, "Leave a gap of 3 between frame and door. Hole diameter 8mm.", "txt")
		require.Contains(t, categories(got), "measurements")
		for _, f := range got {
			if f.Category == "measurements" {
				assert.Equal(t, "1 measurement(s) found without units specified", f.Description)
			}
		}
	})

	t.Run("power connected early", func(t *testing.T) {
		got := ruleFindings(t, agent, "Connect power to the controller. Caution. Then mount the reader. Then test.", "txt")
		require.Contains(t, categories(got), "sequence")
		assert.Equal(t, models.SeverityError, got[len(got)-1].Severity)
	})

	t.Run("clean document", func(t *testing.T) {
		got := ruleFindings(t, agent, "Read these notes before you begin.", "txt")
		require.Len(t, got, 1)
		assert.Equal(t, models.SeverityInfo, got[0].Severity)
		assert.Equal(t, models.SourceRules, got[0].Source)
	})
}

func TestFormattingRules(t *testing.T) {
	agent := NewFormatting(testOptions(nil))

	t.Run("imperial decimal", func(t *testing.T) {
		got := ruleFindings(t, agent, "Drill a 0.25 inch pilot hole.", "txt")
		require.Len(t, got, 1)
		assert.Equal(t, "Use fractional notation: 1/4", got[0].Suggestion)
	})

	t.Run("mixed imperial decimal", func(t *testing.T) {
		got := ruleFindings(t, agent, `Cut 1.5" of sleeving.`, "txt")
		require.Len(t, got, 1)
		assert.Equal(t, "Use fractional notation: 1-1/2", got[0].Suggestion)
	})

	t.Run("metric fraction", func(t *testing.T) {
		got := ruleFindings(t, agent, "Countersink to 1/2 mm.", "txt")
		require.Len(t, got, 1)
		assert.Equal(t, "Use decimal notation: 0.5mm", got[0].Suggestion)
	})

	t.Run("excessive precision", func(t *testing.T) {
		got := ruleFindings(t, agent, "Set the gap to 3.175 mm.", "txt")
		require.Len(t, got, 1)
		assert.Equal(t, "precision", got[0].Category)
		assert.Equal(t, "Round to 1 decimal place: 3.2mm", got[0].Suggestion)
	})

	t.Run("wrong inch conversion", func(t *testing.T) {
		got := ruleFindings(t, agent, "Use a 2 inch [40 mm] spacer.", "txt")
		require.Contains(t, categories(got), "conversion")
		assert.Equal(t, models.SeverityError, got[0].Severity)
	})

	t.Run("correct inch conversion", func(t *testing.T) {
		got := ruleFindings(t, agent, "Use a 2 inch [50.8 mm] spacer.", "txt")
		assert.NotContains(t, categories(got), "conversion")
	})

	t.Run("wrong temperature conversion", func(t *testing.T) {
		got := ruleFindings(t, agent, "Operating range up to 120°F (60°C).", "txt")
		require.Len(t, got, 1)
		assert.Contains(t, got[0].Description, "should be 48.9°C")
	})

	t.Run("skipped heading in markdown", func(t *testing.T) {
		got := ruleFindings(t, agent, "# Install\n\n### Wiring\n\n## Testing\n", "md")
		require.Len(t, got, 1)
		assert.Equal(t, "structure", got[0].Category)
		assert.Equal(t, "Heading: Wiring", got[0].Location)
	})

	t.Run("headings ignored for plain text", func(t *testing.T) {
		got := ruleFindings(t, agent, "# Install\n\n### Wiring\n", "txt")
		assert.NotContains(t, categories(got), "structure")
	})
}

func TestNearestFraction(t *testing.T) {
	assert.Equal(t, "1/2", nearestFraction(0.5))
	assert.Equal(t, "3-3/8", nearestFraction(3.375))
	assert.Equal(t, "2", nearestFraction(2.01))
	assert.Equal(t, "1", nearestFraction(0.99))
}

func TestBrandRules(t *testing.T) {
	agent := NewBrand(testOptions(nil), nil)

	got := ruleFindings(t, agent, "Reader Installation\nPair over bluetooth or Bluetooth. This is super easy and the the reader beeps.", "txt")
	assert.Equal(t, []string{"terminology", "language", "language"}, categories(got))
	assert.Contains(t, got[0].Description, "'bluetooth'")
	assert.Contains(t, got[2].Description, "'the the'")

	noTitle := ruleFindings(t, agent, "this guide explains the installation of the reader.", "txt")
	assert.Equal(t, []string{"structure"}, categories(noTitle))
}

func TestDiagramRules(t *testing.T) {
	agent := NewDiagram(testOptions(nil))

	t.Run("fire alarm without fail safe", func(t *testing.T) {
		got := ruleFindings(t, agent, "Connect the fire alarm relay as shown in Figure 2.\nFigure 2: Relay wiring", "txt")
		require.Len(t, got, 1)
		assert.Equal(t, models.SeverityError, got[0].Severity)
	})

	t.Run("orphan figure and polarity", func(t *testing.T) {
		got := ruleFindings(t, agent, "Supply 12VDC to the lock, see Figure 4.", "txt")
		assert.Equal(t, []string{"diagram", "wiring"}, categories(got))
		assert.Equal(t, "Figure 4", got[0].Location)
	})

	t.Run("wiring without diagram", func(t *testing.T) {
		got := ruleFindings(t, agent, "Wire the maglock output to the relay.", "txt")
		assert.Equal(t, []string{"diagram", "specification"}, categories(got))
	})
}

func TestSummary(t *testing.T) {
	prior := []models.Finding{
		{AgentName: "brand", Severity: models.SeverityInfo, Confidence: 0.9, Description: "a"},
		{AgentName: "technical", Severity: models.SeverityError, Confidence: 0.7, Description: "b"},
		{AgentName: "technical", Severity: models.SeverityWarning, Confidence: 0.6, Description: "c"},
		{AgentName: "diagram", Severity: models.SeverityError, Confidence: 0.9, Description: "d"},
		{AgentName: "diagram", Severity: models.SeverityWarning, Confidence: 0.6, Description: "e"},
	}
	rc := contextFor("ignored", "txt").WithPriorFindings(prior)

	t.Run("rule narrative when generator fails", func(t *testing.T) {
		gen := &fakeGenerator{err: assert.AnError}
		s, err := NewSummary(testOptions(gen)).Summarize(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, models.SourceRules, s.Source)
		assert.Equal(t, "Review found: 2 critical issue(s) that must be fixed, 2 warning(s) that should be addressed, 1 suggestion(s) for improvement. Agent breakdown: brand: 1 findings, technical: 2 findings, diagram: 2 findings.", s.Narrative)

		order := make([]string, len(s.Priorities))
		for i, f := range s.Priorities {
			order[i] = f.Description
		}
		assert.Equal(t, []string{"d", "b", "c", "e", "a"}, order)
	})

	t.Run("ai narrative", func(t *testing.T) {
		gen := &fakeGenerator{response: "  EXECUTIVE SUMMARY:\nFix the relay wiring.  "}
		s, err := NewSummary(testOptions(gen)).Summarize(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, models.SourceAI, s.Source)
		assert.Equal(t, "EXECUTIVE SUMMARY:\nFix the relay wiring.", s.Narrative)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "- [error] diagram")
		assert.Len(t, s.Priorities, 5)
	})

	t.Run("no findings", func(t *testing.T) {
		s, err := NewSummary(testOptions(nil)).Summarize(context.Background(), contextFor("x", "txt"))
		require.NoError(t, err)
		assert.Contains(t, s.Narrative, "No issues found")
		assert.Empty(t, s.Priorities)
	})
}
