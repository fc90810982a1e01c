package models_test

import (
	"testing"

	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.TaskState
		allowed  bool
	}{
		{models.ToDoTaskState, models.InProgressTaskState, true},
		{models.InProgressTaskState, models.DoneTaskState, true},
		{models.InProgressTaskState, models.ToDoTaskState, true},
		{models.DoneTaskState, models.InProgressTaskState, true},
		{models.ToDoTaskState, models.DoneTaskState, false},
		{models.DoneTaskState, models.ToDoTaskState, false},
		{models.ToDoTaskState, models.ToDoTaskState, false},
		{models.DoneTaskState, models.DoneTaskState, false},
		{"Unknown", models.ToDoTaskState, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, models.CanTransition(tt.from, tt.to))
		})
	}
}

func TestParseTaskState(t *testing.T) {
	for in, want := range map[string]models.TaskState{
		"ToDo":        models.ToDoTaskState,
		"todo":        models.ToDoTaskState,
		"in-progress": models.InProgressTaskState,
		"IN_PROGRESS": models.InProgressTaskState,
		"InProgress":  models.InProgressTaskState,
		"done":        models.DoneTaskState,
	} {
		got, ok := models.ParseTaskState(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := models.ParseTaskState("blocked")
	assert.False(t, ok)
}

func TestTaskID(t *testing.T) {
	a := models.TaskID("e1", "tortilla")
	assert.Equal(t, a, models.TaskID("e1", "tortilla"))
	assert.NotEqual(t, a, models.TaskID("e2", "tortilla"))
	assert.NotEqual(t, a, models.TaskID("e1", "gazpacho"))
	assert.NotEqual(t, models.TaskID("a", "b/c"), models.TaskID("a/b", "c"))
}
