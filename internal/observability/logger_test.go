package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_NilIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.LogPlan("c", "t", "q", 1, false)
		l.LogRoute("c", "t", 1, "q", "multiply")
		l.LogError("c", "t", "routing", errors.New("boom"))
		l.LogHeartbeat()
	})
}

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "")

	l.LogRoute("chat-1", "task-1", 2, "What is 20 divided by 4?", "divide")
	l.LogError("chat-1", "task-1", "aggregation", errors.New("empty answer"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var evt struct {
		Type   EventType      `json:"type"`
		ChatID string         `json:"chat_id"`
		TaskID string         `json:"task_id"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &evt))
	assert.Equal(t, EventTypeRoute, evt.Type)
	assert.Equal(t, "chat-1", evt.ChatID)
	assert.Equal(t, "task-1", evt.TaskID)
	assert.Equal(t, "divide", evt.Data["operation"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &evt))
	assert.Equal(t, EventTypeError, evt.Type)
	assert.Equal(t, "aggregation", evt.Data["stage"])
}

func TestLogger_MirrorsLLMEventsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm.log")
	var buf bytes.Buffer
	l := NewLogger(&buf, path)

	l.LogPlan("c", "t", "q", 1, false)
	l.LogLLM("c", "t", "prompt", "response", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"type":"llm"`)
}

func TestLogger_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.log")
	l := NewLogger(&bytes.Buffer{}, path)
	l.maxSize = 10

	l.LogLLM("c", "t", "first", "response", nil)
	l.LogLLM("c", "t", "second", "response", nil)

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Contains(t, string(old), "first")

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(cur), "second")
	assert.NotContains(t, string(cur), "first")
}

func TestRequestContext(t *testing.T) {
	assert.Equal(t, RequestInfo{}, RequestFromContext(context.Background()))

	ctx := WithRequest(context.Background(), "chat-1", "task-1")
	assert.Equal(t, RequestInfo{ChatID: "chat-1", TaskID: "task-1"}, RequestFromContext(ctx))
}

func TestStatus(t *testing.T) {
	SetStatus("task-1", StagePlanning, "What is 6 times 7?")
	defer ClearStatus("task-1")

	tasks := ActiveTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, StagePlanning, tasks[0].Stage)
	assert.Equal(t, "What is 6 times 7?", tasks[0].Query)
	assert.Contains(t, StatusLine(), "PLANNING")

	SetStatus("task-1", StageIdle, "")
	assert.Empty(t, ActiveTasks())
	assert.Contains(t, StatusLine(), "Waiting...")
}

func TestStatus_ConcurrentTasksAreIndependent(t *testing.T) {
	SetStatus("task-a", StageRouting, "What is 6 times 7?")
	SetStatus("task-b", StagePlanning, "What is 20 divided by 4?")
	defer ClearStatus("task-b")

	SetStatus("task-a", StageIdle, "")

	tasks := ActiveTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-b", tasks[0].TaskID)
	assert.Equal(t, StagePlanning, tasks[0].Stage)
	assert.Contains(t, StatusLine(), "PLANNING")
}

func TestStatus_StageChangeKeepsStartTime(t *testing.T) {
	SetStatus("task-1", StagePlanning, "q")
	defer ClearStatus("task-1")
	since := ActiveTasks()[0].Since

	SetStatus("task-1", StageAggregating, "q")
	tasks := ActiveTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, StageAggregating, tasks[0].Stage)
	assert.Equal(t, since, tasks[0].Since)
}
