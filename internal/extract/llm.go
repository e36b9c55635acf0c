package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Completer is the abstract extraction backend: it turns a prompt into
// text that may or may not contain a valid JSON object.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const extractTaskPrompt = `Extract the following fields from this email and return STRICT JSON:
- project_type (short label)
- assigned_dept (HR / Finance / IT / Hardware)
- time_required
- priority (LOW/MEDIUM/HIGH)
- status (pending/resolved)
- summary (2 lines)

Email Subject: %s
Email Body: %s

Return ONLY JSON.`

const classifyStatusPrompt = `Detect if this email is a STATUS UPDATE. Return STRICT JSON only.

Rules:
- If email mentions "task" or "ticket" with an ID, extract task_id
- If the email says: resolved, completed, done, fixed, solved, closed, no longer needed
  then new_status = "resolved"
- If the email says: in progress, working on, pending, then new_status = "pending"
- If no clear status, then new_status = null

Return JSON ONLY in exactly this structure:
{
  "is_status_update": true/false,
  "task_id": number or null,
  "new_status": "resolved" / "pending" / null
}

Email:
Subject: %s

%s`

// LLM is the probabilistic extraction strategy. It prompts the backend
// for a strict-JSON answer and parses the first balanced JSON object
// out of the response. Parse failures are returned as errors so the
// caller can fall back to the heuristic strategy.
type LLM struct {
	completer Completer
}

// NewLLM returns the model-backed strategy.
func NewLLM(c Completer) *LLM {
	return &LLM{completer: c}
}

// flexID tolerates the shapes models actually emit for task_id:
// a number, a numeric string, or null. Anything else decodes to zero
// rather than failing the whole classification.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	*f = 0
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err == nil && id > 0 {
		*f = flexID(id)
	}
	return nil
}

// statusResponse is the fixed schema the model is asked to return for
// classification.
type statusResponse struct {
	IsStatusUpdate bool    `json:"is_status_update"`
	TaskID         flexID  `json:"task_id"`
	NewStatus      *string `json:"new_status"`
}

// ClassifyStatus asks the model whether the message is a status update
// on an existing task.
func (l *LLM) ClassifyStatus(ctx context.Context, subject, body string) (Classification, error) {
	prompt := fmt.Sprintf(classifyStatusPrompt, subject, body)

	text, err := l.completer.Complete(ctx, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("status classification: %w", err)
	}

	obj := firstJSONObject(text)
	if obj == "" {
		return Classification{}, fmt.Errorf("status classification: no JSON object in response")
	}

	var resp statusResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return Classification{}, fmt.Errorf("status classification: parsing response: %w", err)
	}

	cls := Classification{
		IsUpdate: resp.IsStatusUpdate,
		TaskID:   int64(resp.TaskID),
	}
	if resp.NewStatus != nil {
		// The schema allows exactly "resolved" or "pending"; anything
		// else is treated as no status signal.
		cls.NewStatus = ResolutionStatus(*resp.NewStatus)
	}

	// An update with neither reference nor status is useless; callers
	// treat it as "not an update".
	if cls.TaskID == 0 && cls.NewStatus == "" {
		cls.IsUpdate = false
	}

	return cls, nil
}

// ExtractTask asks the model for the fixed new-task field set and
// fills any gaps with defaults.
func (l *LLM) ExtractTask(ctx context.Context, subject, body string) (TaskFields, error) {
	prompt := fmt.Sprintf(extractTaskPrompt, subject, body)

	text, err := l.completer.Complete(ctx, prompt)
	if err != nil {
		return TaskFields{}, fmt.Errorf("task extraction: %w", err)
	}

	obj := firstJSONObject(text)
	if obj == "" {
		return TaskFields{}, fmt.Errorf("task extraction: no JSON object in response")
	}

	var fields TaskFields
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return TaskFields{}, fmt.Errorf("task extraction: parsing response: %w", err)
	}

	return ApplyDefaults(fields, subject), nil
}
