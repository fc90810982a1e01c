package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskState string

const (
	ToDoTaskState       TaskState = "ToDo"
	InProgressTaskState TaskState = "InProgress"
	DoneTaskState       TaskState = "Done"
)

// TaskStates lists board lanes in display order.
var TaskStates = []TaskState{ToDoTaskState, InProgressTaskState, DoneTaskState}

// transitions is the board state machine. ToDo never reaches Done directly.
var transitions = map[TaskState][]TaskState{
	ToDoTaskState:       {InProgressTaskState},
	InProgressTaskState: {DoneTaskState, ToDoTaskState},
	DoneTaskState:       {InProgressTaskState},
}

// CanTransition reports whether to is reachable from from in one move.
func CanTransition(from, to TaskState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseTaskState accepts the canonical names plus the lowercase/kebab forms
// ("todo", "in-progress", "done") older clients send.
func ParseTaskState(s string) (TaskState, bool) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "todo":
		return ToDoTaskState, true
	case "inprogress":
		return InProgressTaskState, true
	case "done":
		return DoneTaskState, true
	}
	return "", false
}

type Shift string

const (
	NoShift        Shift = ""
	MorningShift   Shift = "MORNING"
	AfternoonShift Shift = "AFTERNOON"
)

// taskNamespace scopes task identifiers so that (event, recipe) always maps to the same id.
var taskNamespace = uuid.MustParse("6f1c9a4e-3b7d-5e2a-9c41-d8f0b2a7e615")

// TaskID derives the identifier of the task producing recipeID for eventID.
// The event id is length-prefixed so distinct pairs never share a name.
func TaskID(eventID, recipeID string) string {
	name := strconv.Itoa(len(eventID)) + ":" + eventID + "/" + recipeID
	return uuid.NewSHA1(taskNamespace, []byte(name)).String()
}

// Task is a production task derived from an event's menu line.
// Definition fields come from the generator; State and the timestamps belong to the board.
type Task struct {
	ID               string     `json:"id" db:"id"`                               // TaskID(EventID, RecipeID)
	EventID          string     `json:"event_id" db:"event_id"`                   // Owning event
	RecipeID         string     `json:"recipe_id" db:"recipe_id"`                 // Originating recipe
	RecipeName       string     `json:"recipe_name" db:"recipe_name"`             // Copied at generation
	RecipeVersion    int        `json:"recipe_version" db:"recipe_version"`       // Copied at generation
	Station          Station    `json:"station" db:"station"`                     // Copied at generation
	RequiredQuantity float64    `json:"required_quantity" db:"required_quantity"` // guest count * qty per guest, unrounded
	Batches          float64    `json:"batches" db:"batches"`                     // Per rounding policy
	State            TaskState  `json:"state" db:"state"`
	Stale            bool       `json:"stale" db:"stale"` // Recipe no longer on the menu
	Seq              int64      `json:"seq" db:"seq"`     // Creation order
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"` // Last transition
	Shift            Shift      `json:"shift,omitempty" db:"shift"`
	AssignedDate     *time.Time `json:"assigned_date,omitempty" db:"assigned_date"`
	AssigneeID       string     `json:"assignee_id,omitempty" db:"assignee_id"`
	TimerStartedAt   *time.Time `json:"timer_started_at,omitempty" db:"timer_started_at"`
	TimeSpentSeconds int64      `json:"time_spent_seconds" db:"time_spent_seconds"`
}
