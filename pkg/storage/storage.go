package storage

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStateMismatch is returned by TransitionTask when the recorded state differs from the expected one.
	ErrStateMismatch = errors.New("task state mismatch")
	ErrAlreadyExists = errors.New("already exists")
)

// Store defines the persistence operations of the planning engine.
// Begin returns a transaction-scoped Store; writes made through it become
// visible to other readers only after Commit.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Recipe operations
	SaveRecipe(r models.Recipe) error
	UpdateRecipe(r models.Recipe) error
	GetRecipe(id string) (models.Recipe, error)
	ListRecipes() ([]models.Recipe, error)
	DeleteRecipe(id string) error

	// Menu operations, lines are stored with the menu
	SaveMenu(m models.Menu) error
	UpdateMenu(m models.Menu) error
	GetMenu(id string) (models.Menu, error)
	ListMenus() ([]models.Menu, error)
	DeleteMenu(id string) error
	MenusUsingRecipe(recipeID string) ([]models.Menu, error)

	// Event operations, DeleteEvent removes the event's tasks too
	SaveEvent(e models.Event) error
	UpdateEvent(e models.Event) error
	GetEvent(id string) (models.Event, error)
	ListEvents(from, to time.Time) ([]models.Event, error)
	DeleteEvent(id string) error
	EventsUsingMenu(menuID string) ([]models.Event, error)

	// Task operations
	SaveTask(t models.Task) (models.Task, error)
	UpdateTaskDefinition(t models.Task) error
	GetTask(id string) (models.Task, error)
	ListTasksByEvent(eventID string) ([]models.Task, error)
	DeleteTask(id string) error
	DeleteTasksByEvent(eventID string) error
	TransitionTask(id string, from, to models.TaskState, at time.Time) error
	UpdateTaskSchedule(id string, shift models.Shift, date *time.Time, assigneeID string) error
	UpdateTaskTimer(id string, startedAt *time.Time, spentSeconds int64) error
}
