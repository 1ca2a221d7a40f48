package runner

import (
	"fmt"
	"strings"
	"time"
)

// maxLogLines caps the per-run log so a pathological retry loop cannot grow a
// row without bound. When the cap is hit the oldest lines are dropped and a
// truncation marker is kept at the top.
const maxLogLines = 400

const truncationMarker = "[earlier log lines truncated]"

// runLog is the append-only, timestamped per-run log persisted alongside the
// run record. Not safe for concurrent use; each run executes on the single
// queue worker.
type runLog struct {
	lines []string
	now   func() time.Time
}

// newRunLog creates an empty run log. seed, when non-empty, preloads the log
// with previously persisted lines (the retry path carries the original run's
// log forward).
func newRunLog(seed string) *runLog {
	rl := &runLog{now: time.Now}
	if seed != "" {
		rl.lines = strings.Split(seed, "\n")
	}
	return rl
}

// Logf appends one timestamped line.
func (rl *runLog) Logf(format string, args ...any) {
	line := rl.now().UTC().Format("2006-01-02T15:04:05Z") + " " + fmt.Sprintf(format, args...)
	rl.lines = append(rl.lines, line)
	rl.trim()
}

// Append appends pre-formatted lines, timestamping each.
func (rl *runLog) Append(lines []string) {
	for _, l := range lines {
		rl.Logf("%s", l)
	}
}

// String renders the log as one newline-joined blob for persistence.
func (rl *runLog) String() string {
	return strings.Join(rl.lines, "\n")
}

func (rl *runLog) trim() {
	if len(rl.lines) <= maxLogLines {
		return
	}
	kept := rl.lines[len(rl.lines)-maxLogLines+1:]
	rl.lines = append([]string{truncationMarker}, kept...)
}
