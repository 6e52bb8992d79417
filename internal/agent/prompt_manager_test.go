package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestPromptManager_Defaults(t *testing.T) {
	pm := NewPromptManager("")

	msgs, err := pm.Render(PromptPlanner, map[string]any{"query": "What is 6 times 7?"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)

	human := msgs[1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "Given the user's input prompt: What is 6 times 7?")
}

func TestPromptManager_Override(t *testing.T) {
	tempDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tempDir, "aggregator.md"), []byte("Summarize {{.responses}} for {{.query}}\n"), 0644)
	require.NoError(t, err)

	pm := NewPromptManager(tempDir)
	msgs, err := pm.Render(PromptAggregator, map[string]any{
		"context":   "",
		"responses": "Response 1: ok",
		"query":     "q",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// The system prompt is kept, the instructions are replaced.
	assert.Equal(t, defaultPrompts[PromptAggregator].system, msgs[0].Parts[0].(llms.TextContent).Text)
	assert.Equal(t, "Summarize Response 1: ok for q", msgs[1].Parts[0].(llms.TextContent).Text)

	// Stages without an override file keep their defaults.
	msgs, err = pm.Render(PromptPlanner, map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Contains(t, msgs[1].Parts[0].(llms.TextContent).Text, "Given the user's input prompt: x")
}

func TestPromptManager_UnknownPrompt(t *testing.T) {
	_, err := NewPromptManager("").Render("summarizer", nil)
	assert.Error(t, err)
}
