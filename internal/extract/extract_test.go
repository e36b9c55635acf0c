package extract

import (
	"testing"

	"github.com/appless/helpdesk/internal/model"
)

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "object with prose around it",
			input: "Here is the JSON you asked for:\n{\"a\": 1}\nHope that helps!",
			want:  `{"a": 1}`,
		},
		{
			name:  "nested objects stay balanced",
			input: `{"a": {"b": 2}} {"c": 3}`,
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "braces inside strings are ignored",
			input: `{"a": "close } brace"}`,
			want:  `{"a": "close } brace"}`,
		},
		{
			name:  "escaped quotes inside strings",
			input: `{"a": "quote \" then } brace"}`,
			want:  `{"a": "quote \" then } brace"}`,
		},
		{
			name:  "no object",
			input: "sorry, I cannot answer that",
			want:  "",
		},
		{
			name:  "unbalanced object",
			input: `{"a": 1`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstJSONObject(tt.input); got != tt.want {
				t.Errorf("firstJSONObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	fields := ApplyDefaults(TaskFields{}, "Printer broken")

	if fields.ProjectType != "Printer broken" {
		t.Errorf("ProjectType = %q", fields.ProjectType)
	}
	if fields.AssignedDept != "IT" {
		t.Errorf("AssignedDept = %q", fields.AssignedDept)
	}
	if fields.TimeRequired != "Not specified" {
		t.Errorf("TimeRequired = %q", fields.TimeRequired)
	}
	if fields.Priority != "MEDIUM" {
		t.Errorf("Priority = %q", fields.Priority)
	}
	if fields.Status != "pending" {
		t.Errorf("Status = %q", fields.Status)
	}
	if fields.Summary != "Printer broken" {
		t.Errorf("Summary = %q", fields.Summary)
	}
}

func TestApplyDefaultsEmptySubject(t *testing.T) {
	fields := ApplyDefaults(TaskFields{}, "")

	if fields.ProjectType != "Unknown" {
		t.Errorf("ProjectType = %q, want Unknown", fields.ProjectType)
	}
	if fields.Summary != "No summary provided" {
		t.Errorf("Summary = %q", fields.Summary)
	}
}

func TestApplyDefaultsKeepsExtractedValues(t *testing.T) {
	in := TaskFields{
		ProjectType:  "Hardware request",
		AssignedDept: "Hardware",
		Priority:     "HIGH",
	}

	fields := ApplyDefaults(in, "Laptop request")

	if fields.ProjectType != "Hardware request" {
		t.Errorf("ProjectType = %q", fields.ProjectType)
	}
	if fields.AssignedDept != "Hardware" {
		t.Errorf("AssignedDept = %q", fields.AssignedDept)
	}
	if fields.Priority != "HIGH" {
		t.Errorf("Priority = %q", fields.Priority)
	}
	if fields.TimeRequired != "Not specified" {
		t.Errorf("TimeRequired default not applied: %q", fields.TimeRequired)
	}
}

func TestApplyDefaultsCapsProjectType(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}

	fields := ApplyDefaults(TaskFields{}, string(long))
	if len(fields.ProjectType) != maxProjectTypeLen {
		t.Errorf("len(ProjectType) = %d, want %d", len(fields.ProjectType), maxProjectTypeLen)
	}
}

func TestResolutionStatus(t *testing.T) {
	tests := []struct {
		input string
		want  model.Status
	}{
		{"this is now RESOLVED", model.StatusResolved},
		{"please see below, closed", model.StatusResolved},
		{"it's no longer needed", model.StatusResolved},
		{"we are working on it", model.StatusPending},
		{"not yet, sorry", model.StatusPending},
		{"hello there", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ResolutionStatus(tt.input); got != tt.want {
			t.Errorf("ResolutionStatus(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
