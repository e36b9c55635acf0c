package extract

import (
	"context"
	"regexp"
	"strconv"
)

// taskRefPattern matches task references like "task 138", "ticket: 7",
// or "id #42".
var taskRefPattern = regexp.MustCompile(`(?i)(?:task|ticket|id)\s*[:#]?\s*(\d{1,6})`)

// Heuristic is the deterministic extraction strategy: regex for task
// references, keyword scan for status. It never returns an error, so
// it is always a safe fallback.
type Heuristic struct{}

// NewHeuristic returns the keyword/regex strategy.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// ClassifyStatus treats a message as an update only when BOTH a task
// reference and a status keyword are present. A single signal is
// ambiguous: acting on it could corrupt an existing task with data
// meant for a new one.
func (h *Heuristic) ClassifyStatus(_ context.Context, subject, body string) (Classification, error) {
	combined := "Subject: " + subject + "\n\n" + body

	var taskID int64
	if m := taskRefPattern.FindStringSubmatch(combined); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			taskID = id
		}
	}

	status := ResolutionStatus(combined)

	return Classification{
		IsUpdate:  taskID > 0 && status != "",
		TaskID:    taskID,
		NewStatus: status,
	}, nil
}

// ExtractTask returns the all-defaults record derived from the
// subject. There is nothing probabilistic to do here; the defaults
// guarantee the pipeline always produces some task.
func (h *Heuristic) ExtractTask(_ context.Context, subject, _ string) (TaskFields, error) {
	return DefaultFields(subject), nil
}
