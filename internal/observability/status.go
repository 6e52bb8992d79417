package observability

import (
	"sort"
	"sync"
	"time"
)

// Stage is the pipeline stage a request is currently working on.
type Stage string

const (
	StageIdle        Stage = "IDLE"
	StagePlanning    Stage = "PLANNING"
	StageRouting     Stage = "ROUTING"
	StageAggregating Stage = "AGGREGATING"
)

// TaskStatus is the stage of one in-flight request.
type TaskStatus struct {
	TaskID string
	Stage  Stage
	Query  string
	Since  time.Time
}

// SystemStatus tracks every in-flight request by task id, so concurrent
// requests never overwrite each other's stage.
type SystemStatus struct {
	mu            sync.RWMutex
	tasks         map[string]TaskStatus
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	tasks:         make(map[string]TaskStatus),
	LastHeartbeat: time.Now(),
}

// SetStatus records the stage of taskID. StageIdle removes the task.
func SetStatus(taskID string, stage Stage, query string) {
	if stage == StageIdle {
		ClearStatus(taskID)
		return
	}

	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	ts, ok := globalStatus.tasks[taskID]
	if !ok {
		ts = TaskStatus{TaskID: taskID, Since: time.Now()}
	}
	ts.Stage = stage
	ts.Query = query
	globalStatus.tasks[taskID] = ts
}

// ClearStatus forgets taskID.
func ClearStatus(taskID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	delete(globalStatus.tasks, taskID)
}

// ActiveTasks returns the in-flight requests, oldest first.
func ActiveTasks() []TaskStatus {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	out := make([]TaskStatus, 0, len(globalStatus.tasks))
	for _, ts := range globalStatus.tasks {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Since.Equal(out[j].Since) {
			return out[i].Since.Before(out[j].Since)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// LastHeartbeat returns the time of the last Heartbeat call.
func LastHeartbeat() time.Time {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
