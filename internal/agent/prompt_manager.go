package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

const (
	PromptPlanner    = "planner"
	PromptRouter     = "router"
	PromptAggregator = "aggregator"
)

type promptDef struct {
	system    string
	human     string
	variables []string
}

var defaultPrompts = map[string]promptDef{
	PromptPlanner: {
		system: "You are an expert at planning multi-step queries.",
		human: `Given the user's input prompt: {{.query}}

- If the prompt is straightforward, return it as a single query without further breakdown.
- If the prompt is complex and contains multiple distinct ideas or requirements, decompose it into a series of smaller, focused subqueries.

Answer by calling propose_plan. Number the sub-queries from 1 in the order their ideas appear in the prompt, and put the two numbers each sub-query operates on into operand_a and operand_b.`,
		variables: []string{"query"},
	},
	PromptRouter: {
		system: "You are a math routing assistant.",
		human: `You are a math query router. Analyze the following sub-query and decide which mathematical operation should process it.
Your options are:
{{.options}}
Return only one word: {{.tokens}}.

Sub-query: {{.sub_query_text}}`,
		variables: []string{"options", "tokens", "sub_query_text"},
	},
	PromptAggregator: {
		system: "You are a helpful assistant that provides detailed and accurate answers based on the given context.",
		human: `Context: {{.context}}
Prompt: The following are responses from multiple sub-queries:

{{.responses}}

Combine and refine these responses into one comprehensive, cohesive final answer in response to the user query: {{.query}}.
Present your answer in clear, concise language and in markdown format. If any sub-queries are empty, mention that the response is based on the limited information provided.
Answer:`,
		variables: []string{"context", "responses", "query"},
	},
}

// PromptManager resolves the prompt template of each pipeline stage. A
// <stage>.md file in Directory replaces the built-in instructions.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Template returns the chat template for the named stage.
func (pm *PromptManager) Template(name string) (prompts.ChatPromptTemplate, error) {
	def, ok := defaultPrompts[name]
	if !ok {
		return prompts.ChatPromptTemplate{}, fmt.Errorf("unknown prompt %q", name)
	}

	human := def.human
	if override, err := pm.readOverride(name); err != nil {
		log.Printf("Warning: Failed to read prompt override for %s: %v", name, err)
	} else if override != "" {
		human = override
	}

	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(def.system, nil),
		prompts.NewHumanMessagePromptTemplate(human, def.variables),
	}), nil
}

// Render formats the named template into messages ready for the oracle.
func (pm *PromptManager) Render(name string, values map[string]any) ([]llms.MessageContent, error) {
	tmpl, err := pm.Template(name)
	if err != nil {
		return nil, err
	}
	msgs, err := tmpl.FormatMessages(values)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s prompt: %w", name, err)
	}

	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.MessageContent{
			Role:  m.GetType(),
			Parts: []llms.ContentPart{llms.TextPart(m.GetContent())},
		})
	}
	return out, nil
}

func (pm *PromptManager) readOverride(name string) (string, error) {
	if pm == nil || pm.Directory == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, name+".md"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
