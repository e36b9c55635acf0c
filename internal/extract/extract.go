// Package extract derives structured task records from unstructured
// email text. Two strategies implement the same capability: a
// probabilistic one backed by a completion API and a deterministic
// keyword/regex heuristic. A Chain composes them in a fixed order so
// the pipeline always gets an answer.
package extract

import (
	"context"
	"strings"

	"github.com/appless/helpdesk/internal/model"
)

// Classification is the result of deciding whether a message is a
// status update on an existing task.
type Classification struct {
	// IsUpdate reports whether the message references an existing task
	// and carries a status signal.
	IsUpdate bool

	// TaskID is the referenced task, or 0 when none was found.
	TaskID int64

	// NewStatus is the target status, or empty when none was found.
	NewStatus model.Status
}

// TaskFields are the raw extracted fields for a new task, before
// normalization. Any field may come back empty; ApplyDefaults fills
// the gaps.
type TaskFields struct {
	ProjectType  string `json:"project_type"`
	AssignedDept string `json:"assigned_dept"`
	TimeRequired string `json:"time_required"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	Summary      string `json:"summary"`
}

// Extractor classifies messages and extracts new-task fields.
type Extractor interface {
	// ClassifyStatus decides whether subject+body is a status update
	// on an existing task.
	ClassifyStatus(ctx context.Context, subject, body string) (Classification, error)

	// ExtractTask extracts new-task fields from subject+body.
	ExtractTask(ctx context.Context, subject, body string) (TaskFields, error)
}

const maxProjectTypeLen = 100

// ApplyDefaults fills missing fields so that a task record can always
// be produced from a message, whatever the extractor returned.
func ApplyDefaults(f TaskFields, subject string) TaskFields {
	if f.ProjectType == "" {
		f.ProjectType = subject
		if f.ProjectType == "" {
			f.ProjectType = "Unknown"
		}
	}
	if len(f.ProjectType) > maxProjectTypeLen {
		f.ProjectType = f.ProjectType[:maxProjectTypeLen]
	}
	if f.AssignedDept == "" {
		f.AssignedDept = string(model.DepartmentIT)
	}
	if f.TimeRequired == "" {
		f.TimeRequired = "Not specified"
	}
	if f.Priority == "" {
		f.Priority = string(model.PriorityMedium)
	}
	if f.Status == "" {
		f.Status = string(model.StatusPending)
	}
	if f.Summary == "" {
		f.Summary = subject
		if f.Summary == "" {
			f.Summary = "No summary provided"
		}
	}
	return f
}

// DefaultFields is the all-defaults record used when nothing could be
// extracted at all.
func DefaultFields(subject string) TaskFields {
	return ApplyDefaults(TaskFields{}, subject)
}

// resolvedKeywords signal that a task has been dealt with. The same
// set drives inbound status classification and staff-reply scanning.
var resolvedKeywords = []string{
	"resolved", "done", "fixed", "completed", "solved", "closed",
	"no longer needed",
}

// progressKeywords signal that a task is still being worked on.
var progressKeywords = []string{
	"in progress", "working on", "pending", "not yet",
}

// ResolutionStatus scans text case-insensitively and returns
// StatusResolved or StatusPending when a matching keyword is present,
// or empty when the text carries no status signal.
func ResolutionStatus(text string) model.Status {
	lower := strings.ToLower(text)
	for _, kw := range resolvedKeywords {
		if strings.Contains(lower, kw) {
			return model.StatusResolved
		}
	}
	for _, kw := range progressKeywords {
		if strings.Contains(lower, kw) {
			return model.StatusPending
		}
	}
	return ""
}

// ContainsResolutionKeyword reports whether text contains any of the
// resolution keywords.
func ContainsResolutionKeyword(text string) bool {
	return ResolutionStatus(text) == model.StatusResolved
}

// firstJSONObject returns the first balanced brace-delimited object in
// s, or "" when none exists. Braces inside JSON strings are ignored.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
