// Package ingest drives the per-message pipeline: fetch, normalize,
// classify, extract-or-update, persist, advance cursor. Messages are
// handled independently so one bad message never blocks the batch, and
// the cursor is written after each message so a crash resumes exactly
// after the last fully-handled UID.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/appless/helpdesk/internal/cursor"
	"github.com/appless/helpdesk/internal/extract"
	"github.com/appless/helpdesk/internal/mailbox"
	"github.com/appless/helpdesk/internal/model"
	"github.com/appless/helpdesk/internal/store"
)

// Source is one connected mailbox session, scoped to a batch.
// *mailbox.Session satisfies it.
type Source interface {
	ListAfter(ctx context.Context, watermark uint32) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*mailbox.Message, error)
	Close() error
}

// DialFunc opens a mailbox session for one batch.
type DialFunc func(ctx context.Context) (Source, error)

// OutcomeKind tags how a single message was handled.
type OutcomeKind int

const (
	// OutcomeSkipped: the message was deliberately not applied to the
	// store (unfetchable, ambiguous status signal, or unknown task
	// reference). The cursor still advances past it.
	OutcomeSkipped OutcomeKind = iota

	// OutcomeCreated: a new task was persisted.
	OutcomeCreated

	// OutcomeUpdated: an update was journaled against an existing
	// task (and its status transitioned when the target was resolved).
	OutcomeUpdated

	// OutcomeFailed: a store mutation was attempted and failed. The
	// cursor advances anyway: forward progress over completeness.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records how one message was handled.
type Outcome struct {
	UID      uint32
	Kind     OutcomeKind
	TaskID   int64
	Resolved bool
	Err      error
}

// Report summarizes one ingestion batch.
type Report struct {
	StartCursor uint32
	EndCursor   uint32
	Outcomes    []Outcome
}

// Count returns how many outcomes have the given kind.
func (r *Report) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Orchestrator runs ingestion batches.
type Orchestrator struct {
	dial      DialFunc
	cursor    cursor.Store
	extractor extract.Extractor
	store     store.Store
	logger    *slog.Logger
}

// New creates an Orchestrator. The extractor is expected to be a
// fallback chain that never surfaces errors; the orchestrator still
// degrades to defaults if it does.
func New(dial DialFunc, c cursor.Store, e extract.Extractor, s store.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		dial:      dial,
		cursor:    c,
		extractor: e,
		store:     s,
		logger:    logger,
	}
}

// Run executes one batch: load cursor, list newer UIDs, handle each
// message independently, advancing the cursor after every one. Source
// failures (dial, list) are fatal to the batch and leave the cursor
// untouched; the next run retries from the same watermark. Run returns
// the partial report alongside ctx errors so an interrupted batch is
// still observable.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start, err := o.cursor.Load()
	if err != nil {
		// Unreadable watermark means resync from zero, not abort:
		// reprocessing beats skipping mail.
		o.logger.Warn("cursor unreadable, resyncing from zero", "error", err)
		start = 0
	}

	report := &Report{StartCursor: start, EndCursor: start}

	src, err := o.dial(ctx)
	if err != nil {
		return report, fmt.Errorf("connecting to mailbox: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			o.logger.Warn("closing mailbox session", "error", err)
		}
	}()

	uids, err := src.ListAfter(ctx, start)
	if err != nil {
		return report, fmt.Errorf("listing messages after UID %d: %w", start, err)
	}

	o.logger.Info("ingestion batch started", "cursor", start, "new_messages", len(uids))

	for _, uid := range uids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		outcome := o.processMessage(ctx, src, uid)
		report.Outcomes = append(report.Outcomes, outcome)

		// Advance the cursor only after this message's handling is
		// complete (success or defined skip). Write failure is logged,
		// not fatal: the risk is reprocessing, never skipping.
		if err := o.cursor.Save(uid); err != nil {
			o.logger.Warn("saving cursor failed", "uid", uid, "error", err)
		}
		report.EndCursor = uid

		o.logOutcome(outcome)
	}

	return report, nil
}

func (o *Orchestrator) logOutcome(out Outcome) {
	attrs := []any{"uid", out.UID, "outcome", out.Kind.String()}
	if out.TaskID != 0 {
		attrs = append(attrs, "task_id", out.TaskID)
	}
	if out.Err != nil {
		attrs = append(attrs, "error", out.Err)
		o.logger.Warn("message handled", attrs...)
		return
	}
	o.logger.Info("message handled", attrs...)
}

// processMessage handles a single UID end to end. It never returns a
// batch-fatal condition: every failure maps to a Skipped or Failed
// outcome and the caller advances the cursor regardless.
func (o *Orchestrator) processMessage(ctx context.Context, src Source, uid uint32) Outcome {
	msg, err := src.Fetch(ctx, uid)
	if err != nil {
		return Outcome{UID: uid, Kind: OutcomeSkipped, Err: fmt.Errorf("fetching message: %w", err)}
	}

	cls, err := o.extractor.ClassifyStatus(ctx, msg.Subject, msg.Body)
	if err != nil {
		// The chain should have fallen back already; treat the message
		// as a plain new request rather than dropping it.
		o.logger.Warn("status classification failed", "uid", uid, "error", err)
		cls = extract.Classification{}
	}

	if cls.IsUpdate {
		return o.applyUpdate(ctx, uid, msg, cls)
	}
	return o.createTask(ctx, uid, msg)
}

// applyUpdate journals an inbound status update and, when the target
// status is resolved, transitions the task. An update lacking either a
// task reference or a status signal mutates nothing: ambiguous signals
// must never advance or regress state.
func (o *Orchestrator) applyUpdate(ctx context.Context, uid uint32, msg *mailbox.Message, cls extract.Classification) Outcome {
	if cls.TaskID == 0 || cls.NewStatus == "" {
		return Outcome{UID: uid, Kind: OutcomeSkipped,
			Err: fmt.Errorf("ambiguous status update (task_id=%d, status=%q)", cls.TaskID, cls.NewStatus)}
	}

	if _, err := o.store.GetTaskByID(ctx, cls.TaskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{UID: uid, Kind: OutcomeSkipped,
				Err: fmt.Errorf("status update references unknown task %d", cls.TaskID)}
		}
		return Outcome{UID: uid, Kind: OutcomeFailed, TaskID: cls.TaskID,
			Err: fmt.Errorf("looking up task %d: %w", cls.TaskID, err)}
	}

	update := model.Update{
		TaskID:  cls.TaskID,
		Message: "Sender update: " + msg.Subject + "\n\n" + msg.Body,
		Author:  msg.Sender,
		Type:    model.UpdateTypeSender,
	}
	if err := o.store.InsertUpdate(ctx, update); err != nil {
		return Outcome{UID: uid, Kind: OutcomeFailed, TaskID: cls.TaskID,
			Err: fmt.Errorf("journaling update: %w", err)}
	}

	out := Outcome{UID: uid, Kind: OutcomeUpdated, TaskID: cls.TaskID}

	// Resolved-or-no-op: a pending/progress signal is journaled above
	// but never changes stored status.
	if cls.NewStatus == model.StatusResolved {
		if err := o.store.UpdateTaskStatus(ctx, cls.TaskID, model.StatusResolved); err != nil {
			out.Kind = OutcomeFailed
			out.Err = fmt.Errorf("resolving task %d: %w", cls.TaskID, err)
			return out
		}
		out.Resolved = true
	}

	return out
}

// createTask extracts new-task fields and persists the task, with the
// message sender as owner. Extraction cannot fail the message: any
// extractor error degrades to the all-defaults record.
func (o *Orchestrator) createTask(ctx context.Context, uid uint32, msg *mailbox.Message) Outcome {
	fields, err := o.extractor.ExtractTask(ctx, msg.Subject, msg.Body)
	if err != nil {
		o.logger.Warn("task extraction failed, using defaults", "uid", uid, "error", err)
		fields = extract.DefaultFields(msg.Subject)
	}

	task := model.Task{
		ProjectType:  fields.ProjectType,
		OwnerEmail:   msg.Sender,
		AssignedDept: model.NormalizeDepartment(fields.AssignedDept),
		TimeRequired: fields.TimeRequired,
		Priority:     model.NormalizePriority(fields.Priority),
		Status:       model.NormalizeStatus(fields.Status),
		Summary:      fields.Summary,
	}

	id, err := o.store.InsertTask(ctx, task)
	if err != nil {
		return Outcome{UID: uid, Kind: OutcomeFailed, Err: fmt.Errorf("inserting task: %w", err)}
	}

	return Outcome{UID: uid, Kind: OutcomeCreated, TaskID: id}
}
