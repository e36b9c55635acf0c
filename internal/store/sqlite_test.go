package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appless/helpdesk/internal/model"
	"github.com/appless/helpdesk/internal/store"
	"github.com/appless/helpdesk/tests/testutil"
)

func TestInsertAndGetTask(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.InsertTask(ctx, model.Task{
		ProjectType:  "Hardware request",
		OwnerEmail:   "alice@example.com",
		AssignedDept: model.DepartmentHardware,
		TimeRequired: "2 days",
		Priority:     model.PriorityHigh,
		Status:       model.StatusPending,
		Summary:      "Replacement laptop needed",
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	task, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "Hardware request", task.ProjectType)
	assert.Equal(t, model.DepartmentHardware, task.AssignedDept)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestInsertTaskNormalizesEnums(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	// Whatever the extractor produced, stored values come from the
	// fixed enums.
	id, err := s.InsertTask(ctx, model.Task{
		ProjectType:  "Misc",
		AssignedDept: model.Department("facilities"),
		Priority:     model.Priority("urgent"),
		Status:       model.Status("weird"),
	})
	require.NoError(t, err)

	task, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.DepartmentIT, task.AssignedDept)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.StatusPending, task.Status)
}

func TestGetTaskByIDNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.GetTaskByID(context.Background(), 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTaskStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.InsertTask(ctx, model.Task{ProjectType: "VPN access"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateTaskStatus(ctx, id, model.StatusResolved))

	task, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, task.Status)

	assert.ErrorIs(t, s.UpdateTaskStatus(ctx, 9999, model.StatusResolved), store.ErrNotFound)
}

func TestUpdatesJournalOrdering(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.InsertTask(ctx, model.Task{ProjectType: "Printer"})
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, s.InsertUpdate(ctx, model.Update{
			TaskID:    id,
			Message:   msg,
			Author:    "support@example.com",
			Type:      model.UpdateTypeReply,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	updates, err := s.GetUpdatesForTask(ctx, id)
	require.NoError(t, err)
	require.Len(t, updates, 3)

	assert.Equal(t, "first", updates[0].Message)
	assert.Equal(t, "second", updates[1].Message)
	assert.Equal(t, "third", updates[2].Message)
	assert.Equal(t, model.UpdateTypeReply, updates[0].Type)
	assert.NotEmpty(t, updates[0].ID)
}

func TestGetUpdatesForTasks(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id1, err := s.InsertTask(ctx, model.Task{ProjectType: "A"})
	require.NoError(t, err)
	id2, err := s.InsertTask(ctx, model.Task{ProjectType: "B"})
	require.NoError(t, err)

	require.NoError(t, s.InsertUpdate(ctx, model.Update{TaskID: id1, Message: "on A", Type: model.UpdateTypeSender}))
	require.NoError(t, s.InsertUpdate(ctx, model.Update{TaskID: id2, Message: "on B", Type: model.UpdateTypeReply}))

	updates, err := s.GetUpdatesForTasks(ctx, []int64{id1, id2})
	require.NoError(t, err)

	assert.Len(t, updates[id1], 1)
	assert.Len(t, updates[id2], 1)
	assert.Equal(t, "on A", updates[id1][0].Message)

	empty, err := s.GetUpdatesForTasks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetTasksFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTask(ctx, model.Task{
		ProjectType: "Payroll issue", OwnerEmail: "Bob <bob@corp.example>",
		AssignedDept: model.DepartmentFinance,
	})
	require.NoError(t, err)

	id2, err := s.InsertTask(ctx, model.Task{
		ProjectType: "Laptop", OwnerEmail: "alice@example.com",
		AssignedDept: model.DepartmentHardware,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(ctx, id2, model.StatusResolved))

	byDept, err := s.GetTasks(ctx, store.TaskFilter{Department: "finance"})
	require.NoError(t, err)
	require.Len(t, byDept, 1)
	assert.Equal(t, "Payroll issue", byDept[0].ProjectType)

	byOwner, err := s.GetTasks(ctx, store.TaskFilter{OwnerQuery: "BOB@corp"})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)

	byStatus, err := s.GetTasks(ctx, store.TaskFilter{Status: string(model.StatusResolved)})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, id2, byStatus[0].ID)

	all, err := s.GetTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
