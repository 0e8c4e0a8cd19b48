package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusToDo       TaskStatus = "TO_DO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusToDo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TaskType is the category chosen when a task is created. It never changes afterwards.
type TaskType string

const (
	TypeFeature     TaskType = "FEATURE"
	TypeBug         TaskType = "BUG"
	TypeChore       TaskType = "CHORE"
	TypeImprovement TaskType = "IMPROVEMENT"
)

func (t TaskType) Valid() bool {
	switch t {
	case TypeFeature, TypeBug, TypeChore, TypeImprovement:
		return true
	}
	return false
}

// Ref points at a user. It either carries only the identifier (a reference)
// or the identifier plus the user's summary (an expansion).
type Ref struct {
	ID   ID
	User *UserSummary
}

// Reference builds the unexpanded shape.
func Reference(id ID) Ref {
	return Ref{ID: id}
}

// Expanded builds the expanded shape from a loaded user.
func Expanded(u *User) Ref {
	if u == nil {
		return Ref{}
	}
	return Ref{ID: u.ID, User: u.Summary()}
}

func (r Ref) IsExpanded() bool {
	return r.User != nil
}

// MarshalJSON writes a reference as the bare identifier and an expansion as the user object.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	return json.Marshal(r.ID)
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id ID
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	var summary UserSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return err
	}
	*r = Ref{ID: summary.ID, User: &summary}
	return nil
}

// Comment is an append-only note left on a task.
type Comment struct {
	Text      string    `json:"text"`
	Author    Ref       `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is a unit of work with at most one assignee.
type Task struct {
	ID          ID         `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        TaskType   `json:"type"`
	Status      TaskStatus `json:"status"`
	CreatedBy   Ref        `json:"createdBy"`
	AssignedTo  *Ref       `json:"assignedTo"`
	Comments    []Comment  `json:"comments"`
	Attachments []string   `json:"attachments,omitempty"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

// Assignee returns the assignee identifier, if any.
func (t *Task) Assignee() (ID, bool) {
	if t == nil || t.AssignedTo == nil || t.AssignedTo.ID.IsZero() {
		return "", false
	}
	return t.AssignedTo.ID, true
}

// AssigneeID returns a pointer suitable for compare-and-set writes, nil when unassigned.
func (t *Task) AssigneeID() *ID {
	id, ok := t.Assignee()
	if !ok {
		return nil
	}
	return &id
}

// Clone returns a copy that shares no mutable state with t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.AssignedTo != nil {
		ref := *t.AssignedTo
		out.AssignedTo = &ref
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	if t.Comments != nil {
		out.Comments = append(make([]Comment, 0, len(t.Comments)), t.Comments...)
	}
	if t.Attachments != nil {
		out.Attachments = append(make([]string, 0, len(t.Attachments)), t.Attachments...)
	}
	return &out
}
