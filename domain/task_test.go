package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefJSONShapes(t *testing.T) {
	user := &User{ID: NewID(), FirstName: "Ada", Email: "ada@example.com", PasswordHash: "secret"}

	ref, err := json.Marshal(Reference(user.ID))
	require.NoError(t, err)
	assert.JSONEq(t, `"`+user.ID.String()+`"`, string(ref))

	expanded, err := json.Marshal(Expanded(user))
	require.NoError(t, err)
	assert.NotContains(t, string(expanded), "secret")

	var back Ref
	require.NoError(t, json.Unmarshal(expanded, &back))
	assert.True(t, back.IsExpanded())
	assert.Equal(t, user.ID, back.ID)

	require.NoError(t, json.Unmarshal(ref, &back))
	assert.False(t, back.IsExpanded())
	assert.Equal(t, user.ID, back.ID)
}

func TestTaskAssignee(t *testing.T) {
	var task Task
	_, ok := task.Assignee()
	assert.False(t, ok)
	assert.Nil(t, task.AssigneeID())

	ref := Reference(NewID())
	task.AssignedTo = &ref
	id, ok := task.Assignee()
	assert.True(t, ok)
	assert.Equal(t, ref.ID, id)
	assert.Equal(t, ref.ID, *task.AssigneeID())
}

func TestTaskCloneIsDeep(t *testing.T) {
	ref := Reference(NewID())
	task := &Task{AssignedTo: &ref, Comments: []Comment{{Text: "a"}}}
	clone := task.Clone()
	clone.AssignedTo.ID = NewID()
	clone.Comments[0].Text = "b"

	assert.Equal(t, ref.ID, task.AssignedTo.ID)
	assert.Equal(t, "a", task.Comments[0].Text)
}

func TestTaskCloneKeepsEmptyComments(t *testing.T) {
	clone := (&Task{Title: "fresh", Comments: []Comment{}}).Clone()
	require.NotNil(t, clone.Comments)

	raw, err := json.Marshal(clone)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"comments":[]`)

	assert.Nil(t, (&Task{}).Clone().Comments)
}

func TestEnums(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, TaskStatus("DONE").Valid())
	assert.True(t, TypeBug.Valid())
	assert.False(t, TaskType("").Valid())
}
