// Package reply implements the staff reply flow: deliver the reply by
// mail, journal it, and re-derive task status from the reply text. The
// journal must reflect only actually-sent replies, so delivery comes
// first and each later failure is reported as its own category.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/appless/helpdesk/internal/extract"
	"github.com/appless/helpdesk/internal/mailer"
	"github.com/appless/helpdesk/internal/model"
	"github.com/appless/helpdesk/internal/store"
)

// ErrMissingInput is returned when the task reference or message is
// empty.
var ErrMissingInput = errors.New("missing task id or message")

// ErrTaskNotFound is returned when the referenced task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// SendError wraps a mail transport failure. Nothing was recorded.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return "sending reply: " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// RecordError wraps a journal-write failure that happened after the
// mail was already delivered. Callers must treat the reply as sent.
type RecordError struct {
	Err error
}

func (e *RecordError) Error() string { return "recording reply after send: " + e.Err.Error() }
func (e *RecordError) Unwrap() error { return e.Err }

// ResolveError wraps a status-transition failure that happened after
// the mail was delivered and the reply journaled.
type ResolveError struct {
	TaskID int64
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolving task %d after reply: %v", e.TaskID, e.Err)
}
func (e *ResolveError) Unwrap() error { return e.Err }

// Service sends staff replies and applies the same status
// reconciliation as the inbound pipeline.
type Service struct {
	store  store.Store
	sender mailer.Sender
	from   string
	logger *slog.Logger
}

// New creates a reply service. from is the address journal entries are
// attributed to.
func New(s store.Store, sender mailer.Sender, from string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, sender: sender, from: from, logger: logger}
}

// Result reports what a successful reply did.
type Result struct {
	TaskID   int64
	Resolved bool
}

// Send looks up the task, mails the reply to its owner, journals the
// reply, and resolves the task when the reply contains a resolution
// keyword. The error identifies exactly how far the flow got:
// ErrMissingInput and ErrTaskNotFound before any side effect,
// *SendError before anything was recorded, *RecordError and
// *ResolveError after the mail went out.
func (s *Service) Send(ctx context.Context, taskID int64, message string) (*Result, error) {
	if taskID <= 0 || strings.TrimSpace(message) == "" {
		return nil, ErrMissingInput
	}

	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("looking up task %d: %w", taskID, err)
	}

	subject := fmt.Sprintf("Update on your request (Task %d)", taskID)
	if err := s.sender.Send(task.OwnerEmail, subject, message); err != nil {
		return nil, &SendError{Err: err}
	}

	update := model.Update{
		TaskID:  taskID,
		Message: message,
		Author:  s.from,
		Type:    model.UpdateTypeReply,
	}
	if err := s.store.InsertUpdate(ctx, update); err != nil {
		return nil, &RecordError{Err: err}
	}

	result := &Result{TaskID: taskID}

	if extract.ContainsResolutionKeyword(message) {
		if err := s.store.UpdateTaskStatus(ctx, taskID, model.StatusResolved); err != nil {
			return result, &ResolveError{TaskID: taskID, Err: err}
		}
		result.Resolved = true
		s.logger.Info("task resolved by staff reply", "task_id", taskID)
	}

	return result, nil
}
