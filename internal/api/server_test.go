package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appless/helpdesk/internal/api"
	"github.com/appless/helpdesk/internal/ingest"
	"github.com/appless/helpdesk/internal/model"
	"github.com/appless/helpdesk/internal/reply"
	"github.com/appless/helpdesk/internal/store"
	"github.com/appless/helpdesk/tests/testutil"
)

type fakeSender struct {
	err  error
	sent int
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent++
	return nil
}

type fakeRunner struct {
	report *ingest.Report
	err    error
}

func (f *fakeRunner) Run(ctx context.Context) (*ingest.Report, error) {
	return f.report, f.err
}

func newTestServer(t *testing.T, s store.Store, sender *fakeSender, runner ingest.Runner) *httptest.Server {
	t.Helper()
	svc := reply.New(s, sender, "support@example.com", nil)
	srv := httptest.NewServer(api.NewServer(s, svc, runner, nil))
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	s := testutil.NewTestStore(t)
	srv := newTestServer(t, s, &fakeSender{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestDepartments(t *testing.T) {
	s := testutil.NewTestStore(t)
	srv := newTestServer(t, s, &fakeSender{}, nil)

	resp, err := http.Get(srv.URL + "/api/departments")
	require.NoError(t, err)

	var body struct {
		Departments []string `json:"departments"`
	}
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Departments, "HR")
	assert.Contains(t, body.Departments, "IT")
	assert.Contains(t, body.Departments, "Finance")
	assert.Contains(t, body.Departments, "Hardware")
}

func TestTasksByDepartment(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTask(ctx, model.Task{ProjectType: "Laptop", AssignedDept: "Hardware", OwnerEmail: "a@example.com"})
	require.NoError(t, err)
	_, err = s.InsertTask(ctx, model.Task{ProjectType: "Payroll", AssignedDept: "HR", OwnerEmail: "b@example.com"})
	require.NoError(t, err)

	srv := newTestServer(t, s, &fakeSender{}, nil)

	resp, err := http.Get(srv.URL + "/api/tasks?department=hardware")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tasks []struct {
			ProjectType string         `json:"project_type"`
			Updates     []model.Update `json:"updates"`
		} `json:"tasks"`
		Total int `json:"total"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "Laptop", body.Tasks[0].ProjectType)
	assert.NotNil(t, body.Tasks[0].Updates)
}

func TestTasksRejectsUnknownDepartment(t *testing.T) {
	s := testutil.NewTestStore(t)
	srv := newTestServer(t, s, &fakeSender{}, nil)

	resp, err := http.Get(srv.URL + "/api/tasks?department=catering")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "invalid_department", body.Code)
}

func TestTasksByOwnerWithCountsAndJournal(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id1, err := s.InsertTask(ctx, model.Task{ProjectType: "Laptop", OwnerEmail: "alice@example.com"})
	require.NoError(t, err)
	id2, err := s.InsertTask(ctx, model.Task{ProjectType: "VPN", OwnerEmail: "alice@example.com"})
	require.NoError(t, err)
	_, err = s.InsertTask(ctx, model.Task{ProjectType: "Desk", OwnerEmail: "bob@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateTaskStatus(ctx, id2, model.StatusResolved))
	require.NoError(t, s.InsertUpdate(ctx, model.Update{
		TaskID: id1, Message: "looking into it", Author: "support@example.com", Type: model.UpdateTypeReply,
	}))

	srv := newTestServer(t, s, &fakeSender{}, nil)

	resp, err := http.Get(srv.URL + "/api/tasks?owner=alice")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tasks []struct {
			ID      int64          `json:"id"`
			Updates []model.Update `json:"updates"`
		} `json:"tasks"`
		Total    int `json:"total"`
		Pending  int `json:"pending"`
		Resolved int `json:"resolved"`
	}
	decodeBody(t, resp, &body)

	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.Pending)
	assert.Equal(t, 1, body.Resolved)

	for _, task := range body.Tasks {
		if task.ID == id1 {
			require.Len(t, task.Updates, 1)
			assert.Equal(t, "looking into it", task.Updates[0].Message)
		}
	}
}

func TestReplySuccess(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.InsertTask(ctx, model.Task{ProjectType: "Laptop", OwnerEmail: "a@example.com"})
	require.NoError(t, err)

	sender := &fakeSender{}
	srv := newTestServer(t, s, sender, nil)

	resp, err := http.Post(srv.URL+"/api/reply", "application/json",
		strings.NewReader(`{"task_id": 1, "message": "replacement shipped, case closed"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK       bool  `json:"ok"`
		TaskID   int64 `json:"task_id"`
		Resolved bool  `json:"resolved"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.OK)
	assert.Equal(t, id, body.TaskID)
	assert.True(t, body.Resolved)
	assert.Equal(t, 1, sender.sent)
}

func TestReplyErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		senderErr  error
		seedTask   bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			payload:    `{"task_id": `,
			wantStatus: http.StatusBadRequest,
			wantCode:   "missing_input",
		},
		{
			name:       "empty message",
			payload:    `{"task_id": 1, "message": ""}`,
			seedTask:   true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "missing_input",
		},
		{
			name:       "unknown task",
			payload:    `{"task_id": 42, "message": "hello"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "task_not_found",
		},
		{
			name:       "transport failure",
			payload:    `{"task_id": 1, "message": "hello"}`,
			senderErr:  errors.New("connection refused"),
			seedTask:   true,
			wantStatus: http.StatusBadGateway,
			wantCode:   "send_failed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testutil.NewTestStore(t)
			if tc.seedTask {
				_, err := s.InsertTask(context.Background(), model.Task{ProjectType: "Laptop", OwnerEmail: "a@example.com"})
				require.NoError(t, err)
			}

			srv := newTestServer(t, s, &fakeSender{err: tc.senderErr}, nil)

			resp, err := http.Post(srv.URL+"/api/reply", "application/json", strings.NewReader(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)

			var body struct {
				Code string `json:"code"`
			}
			decodeBody(t, resp, &body)
			assert.Equal(t, tc.wantCode, body.Code)
		})
	}
}

func TestIngestOnDemand(t *testing.T) {
	s := testutil.NewTestStore(t)
	runner := &fakeRunner{report: &ingest.Report{
		StartCursor: 3,
		EndCursor:   5,
		Outcomes: []ingest.Outcome{
			{UID: 4, Kind: ingest.OutcomeCreated},
			{UID: 5, Kind: ingest.OutcomeUpdated},
		},
	}}

	srv := newTestServer(t, s, &fakeSender{}, runner)

	resp, err := http.Post(srv.URL+"/api/ingest", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK      bool   `json:"ok"`
		Cursor  uint32 `json:"cursor"`
		Created int    `json:"created"`
		Updated int    `json:"updated"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.OK)
	assert.Equal(t, uint32(5), body.Cursor)
	assert.Equal(t, 1, body.Created)
	assert.Equal(t, 1, body.Updated)
}

func TestIngestWithoutRunner(t *testing.T) {
	s := testutil.NewTestStore(t)
	srv := newTestServer(t, s, &fakeSender{}, nil)

	resp, err := http.Post(srv.URL+"/api/ingest", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIngestFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	runner := &fakeRunner{err: errors.New("imap: connection reset")}
	srv := newTestServer(t, s, &fakeSender{}, runner)

	resp, err := http.Post(srv.URL+"/api/ingest", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ingest_failed", body.Code)
}
