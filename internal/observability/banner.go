package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

// termMu synchronizes terminal output so log lines never interleave
// with the prompt or the status line.
var termMu sync.Mutex

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output.
// ------------------------------------------------------------

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
func NewTermWriter() io.Writer {
	return termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	banner := `
 _____  _    _     _  __   __
|_   _|/ \  | |   | | \ \ / /
  | | / _ \ | |   | |  \ V /
  | |/ ___ \| |___| |___| |
  |_/_/   \_\_____|_____|_|

   >> PLAN. ROUTE. COMPUTE. <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")

	termMu.Lock()
	defer termMu.Unlock()
	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// StatusLine renders the pipeline status as a single line: the oldest
// in-flight request and how many others are running.
func StatusLine() string {
	tasks := ActiveTasks()
	stage, task := StageIdle, "Waiting..."
	if len(tasks) > 0 {
		stage, task = tasks[0].Stage, tasks[0].Query
	}
	if len(task) > 40 {
		task = task[:37] + "..."
	}
	if len(tasks) > 1 {
		task = fmt.Sprintf("%s (+%d more)", task, len(tasks)-1)
	}

	stageColor := colorNeonCyan
	if stage != StageIdle {
		stageColor = colorNeonMag
	}

	return fmt.Sprintf("%s[%s]%s %s%-11s%s %s %s(up %v)%s",
		colorReset, LastHeartbeat().Format("15:04:05"), colorReset,
		stageColor, stage, colorReset,
		task,
		colorPurple, time.Since(startTime).Round(time.Second), colorReset,
	)
}
