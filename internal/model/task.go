package model

import (
	"strings"
	"time"
)

// Department is one of the fixed set of departments a task can be
// assigned to.
type Department string

const (
	DepartmentHR       Department = "HR"
	DepartmentFinance  Department = "Finance"
	DepartmentIT       Department = "IT"
	DepartmentHardware Department = "Hardware"
)

// Departments returns all valid departments in display order.
func Departments() []Department {
	return []Department{
		DepartmentFinance,
		DepartmentHR,
		DepartmentHardware,
		DepartmentIT,
	}
}

// departmentAliases maps lowercase input to the canonical department.
var departmentAliases = map[string]Department{
	"hr":       DepartmentHR,
	"finance":  DepartmentFinance,
	"it":       DepartmentIT,
	"hardware": DepartmentHardware,
}

// NormalizeDepartment maps free-text extractor output onto the fixed
// department set. Unrecognized or empty input maps to IT. The mapping
// is total: it returns a valid Department for any input string.
func NormalizeDepartment(s string) Department {
	if dept, ok := departmentAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return dept
	}
	return DepartmentIT
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// NormalizeStatus maps free-text status onto the status set,
// defaulting to pending.
func NormalizeStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusResolved)) {
		return StatusResolved
	}
	return StatusPending
}

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// NormalizePriority maps free-text priority onto the priority set,
// defaulting to MEDIUM.
func NormalizePriority(s string) Priority {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PriorityLow):
		return PriorityLow
	case string(PriorityHigh):
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Task is a unit of work derived from an inbound email.
type Task struct {
	// ID is assigned by the store on insert.
	ID int64 `db:"id" json:"id"`

	// ProjectType is a short label describing the request.
	ProjectType string `db:"project_type" json:"project_type"`

	// OwnerEmail is the free-text sender string from the originating
	// message (may be of the form `Name <addr>`).
	OwnerEmail string `db:"owner_email" json:"owner_email"`

	// AssignedDept is always one of the fixed department set.
	AssignedDept Department `db:"assigned_dept" json:"assigned_dept"`

	// TimeRequired is a free-text effort estimate.
	TimeRequired string `db:"time_required" json:"time_required"`

	Priority Priority `db:"priority" json:"priority"`
	Status   Status   `db:"status" json:"status"`

	// Summary is a short description extracted from the message.
	Summary string `db:"summary" json:"summary"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UpdateType distinguishes who authored a task update.
type UpdateType string

const (
	// UpdateTypeReply marks an outbound staff reply.
	UpdateTypeReply UpdateType = "reply"

	// UpdateTypeSender marks an inbound message from the task owner.
	UpdateTypeSender UpdateType = "sender"
)

// Update is an immutable journal entry attached to a task. Updates are
// append-only; creation timestamp is the canonical read order.
type Update struct {
	ID        string     `db:"id" json:"id"`
	TaskID    int64      `db:"task_id" json:"task_id"`
	Message   string     `db:"message" json:"message"`
	Author    string     `db:"author" json:"author"`
	Type      UpdateType `db:"update_type" json:"update_type"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
