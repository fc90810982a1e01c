package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

const uniqueViolation = "23505"

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}
type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// forUpdate locks the selected rows until the transaction ends. Outside a
// transaction there is nothing to hold the lock, so it is omitted.
func (s *PostgresStore) forUpdate() string {
	if _, ok := s.db.(*sqlx.Tx); ok {
		return " FOR UPDATE"
	}
	return ""
}

func insertErr(err error, what, id string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Wrapf(storage.ErrAlreadyExists, "%s %s", what, id)
	}
	return errors.Wrapf(err, "save %s %s", what, id)
}

// affected turns a zero-row UPDATE/DELETE into ErrNotFound.
func affected(res sql.Result, err error, what, id string) error {
	if err != nil {
		return errors.Wrapf(err, "%s %s", what, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(storage.ErrNotFound, "%s %s", what, id)
	}
	return nil
}

func (s *PostgresStore) SaveRecipe(r models.Recipe) error {
	_, err := s.db.Exec(`
		INSERT INTO recipes (id, name, description, station, base_yield, prep_minutes, cook_minutes, ingredients, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.Name, r.Description, r.Station, r.BaseYield, r.PrepMinutes, r.CookMinutes, r.Ingredients, r.Version, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return insertErr(err, "recipe", r.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateRecipe(r models.Recipe) error {
	res, err := s.db.Exec(`
		UPDATE recipes
		SET name = $1, description = $2, station = $3, base_yield = $4, prep_minutes = $5,
		cook_minutes = $6, ingredients = $7, version = $8, updated_at = $9
		WHERE id = $10`,
		r.Name, r.Description, r.Station, r.BaseYield, r.PrepMinutes, r.CookMinutes, r.Ingredients, r.Version, r.UpdatedAt, r.ID)
	return affected(res, err, "recipe", r.ID)
}

// GetRecipe locks the row inside a transaction so version bumps serialize.
func (s *PostgresStore) GetRecipe(id string) (models.Recipe, error) {
	var r models.Recipe
	err := s.db.Get(&r, "SELECT * FROM recipes WHERE id = $1"+s.forUpdate(), id)
	if err == sql.ErrNoRows {
		return models.Recipe{}, errors.Wrapf(storage.ErrNotFound, "recipe %s", id)
	}
	if err != nil {
		return models.Recipe{}, err
	}
	return r, nil
}

func (s *PostgresStore) ListRecipes() ([]models.Recipe, error) {
	recipes := []models.Recipe{}
	if err := s.db.Select(&recipes, "SELECT * FROM recipes ORDER BY name, id"); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *PostgresStore) DeleteRecipe(id string) error {
	res, err := s.db.Exec("DELETE FROM recipes WHERE id = $1", id)
	return affected(res, err, "recipe", id)
}

func (s *PostgresStore) saveLines(m models.Menu) error {
	for i, l := range m.Lines {
		_, err := s.db.Exec("INSERT INTO menu_lines (menu_id, recipe_id, qty_per_guest, position) VALUES ($1, $2, $3, $4)",
			m.ID, l.RecipeID, l.QtyPerGuest, i)
		if err != nil {
			return errors.Wrapf(err, "save menu %s line %d", m.ID, i+1)
		}
	}
	return nil
}

// SaveMenu stores a menu with its lines. Callers run it in a transaction so
// that a failing line leaves no partial menu behind.
func (s *PostgresStore) SaveMenu(m models.Menu) error {
	_, err := s.db.Exec("INSERT INTO menus (id, name, description, price, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		m.ID, m.Name, m.Description, m.Price, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return insertErr(err, "menu", m.ID)
	}
	return s.saveLines(m)
}

func (s *PostgresStore) UpdateMenu(m models.Menu) error {
	res, err := s.db.Exec("UPDATE menus SET name = $1, description = $2, price = $3, status = $4, updated_at = $5 WHERE id = $6",
		m.Name, m.Description, m.Price, m.Status, m.UpdatedAt, m.ID)
	if err := affected(res, err, "menu", m.ID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM menu_lines WHERE menu_id = $1", m.ID); err != nil {
		return err
	}
	return s.saveLines(m)
}

func (s *PostgresStore) GetMenu(id string) (models.Menu, error) {
	var m models.Menu
	err := s.db.Get(&m, "SELECT id, name, description, price, status, created_at, updated_at FROM menus WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Menu{}, errors.Wrapf(storage.ErrNotFound, "menu %s", id)
	}
	if err != nil {
		return models.Menu{}, err
	}
	err = s.db.Select(&m.Lines, "SELECT menu_id, recipe_id, qty_per_guest, position FROM menu_lines WHERE menu_id = $1 ORDER BY position", id)
	if err != nil {
		return models.Menu{}, errors.Wrapf(err, "get menu %s lines", id)
	}
	return m, nil
}

// attachLines loads the lines of every menu in one query.
func (s *PostgresStore) attachLines(menus []models.Menu) error {
	if len(menus) == 0 {
		return nil
	}
	ids := make([]string, len(menus))
	for i, m := range menus {
		ids[i] = m.ID
	}
	var lines []models.MenuLine
	err := s.db.Select(&lines, "SELECT menu_id, recipe_id, qty_per_guest, position FROM menu_lines WHERE menu_id = ANY($1) ORDER BY menu_id, position",
		pq.Array(ids))
	if err != nil {
		return err
	}
	byMenu := make(map[string][]models.MenuLine, len(menus))
	for _, l := range lines {
		byMenu[l.MenuID] = append(byMenu[l.MenuID], l)
	}
	for i := range menus {
		menus[i].Lines = byMenu[menus[i].ID]
	}
	return nil
}

func (s *PostgresStore) ListMenus() ([]models.Menu, error) {
	menus := []models.Menu{}
	err := s.db.Select(&menus, "SELECT id, name, description, price, status, created_at, updated_at FROM menus ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	if err := s.attachLines(menus); err != nil {
		return nil, err
	}
	return menus, nil
}

func (s *PostgresStore) DeleteMenu(id string) error {
	res, err := s.db.Exec("DELETE FROM menus WHERE id = $1", id)
	return affected(res, err, "menu", id)
}

func (s *PostgresStore) MenusUsingRecipe(recipeID string) ([]models.Menu, error) {
	menus := []models.Menu{}
	err := s.db.Select(&menus, `
		SELECT id, name, description, price, status, created_at, updated_at FROM menus
		WHERE id IN (SELECT menu_id FROM menu_lines WHERE recipe_id = $1)
		ORDER BY name, id`, recipeID)
	if err != nil {
		return nil, err
	}
	if err := s.attachLines(menus); err != nil {
		return nil, err
	}
	return menus, nil
}

func (s *PostgresStore) SaveEvent(e models.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO events (id, name, event_date, guest_count, event_type, menu_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Date, e.GuestCount, e.Type, e.MenuID, e.Notes, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return insertErr(err, "event", e.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateEvent(e models.Event) error {
	res, err := s.db.Exec(`
		UPDATE events
		SET name = $1, event_date = $2, guest_count = $3, event_type = $4, menu_id = $5, notes = $6, updated_at = $7
		WHERE id = $8`,
		e.Name, e.Date, e.GuestCount, e.Type, e.MenuID, e.Notes, e.UpdatedAt, e.ID)
	return affected(res, err, "event", e.ID)
}

// GetEvent locks the event row inside a transaction so that generation for
// one event runs one at a time.
func (s *PostgresStore) GetEvent(id string) (models.Event, error) {
	var e models.Event
	err := s.db.Get(&e, "SELECT * FROM events WHERE id = $1"+s.forUpdate(), id)
	if err == sql.ErrNoRows {
		return models.Event{}, errors.Wrapf(storage.ErrNotFound, "event %s", id)
	}
	if err != nil {
		return models.Event{}, err
	}
	return utcDate(e), nil
}

// ListEvents returns events dated within [from, to]; a zero bound is open.
func (s *PostgresStore) ListEvents(from, to time.Time) ([]models.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("event_date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("event_date <= $%d", len(args)))
	}
	query := "SELECT * FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_date, name"

	events := []models.Event{}
	if err := s.db.Select(&events, query, args...); err != nil {
		return nil, err
	}
	for i := range events {
		events[i] = utcDate(events[i])
	}
	return events, nil
}

func (s *PostgresStore) DeleteEvent(id string) error {
	res, err := s.db.Exec("DELETE FROM events WHERE id = $1", id)
	return affected(res, err, "event", id)
}

func (s *PostgresStore) EventsUsingMenu(menuID string) ([]models.Event, error) {
	events := []models.Event{}
	if err := s.db.Select(&events, "SELECT * FROM events WHERE menu_id = $1 ORDER BY event_date, name", menuID); err != nil {
		return nil, err
	}
	for i := range events {
		events[i] = utcDate(events[i])
	}
	return events, nil
}

// SaveTask inserts a task and returns it with its creation sequence.
func (s *PostgresStore) SaveTask(t models.Task) (models.Task, error) {
	err := s.db.QueryRowx(`
		INSERT INTO tasks (id, event_id, recipe_id, recipe_name, recipe_version, station, required_quantity, batches,
		state, stale, created_at, updated_at, shift, assigned_date, assignee_id, timer_started_at, time_spent_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING seq`,
		t.ID, t.EventID, t.RecipeID, t.RecipeName, t.RecipeVersion, t.Station, t.RequiredQuantity, t.Batches,
		t.State, t.Stale, t.CreatedAt, t.UpdatedAt, t.Shift, t.AssignedDate, t.AssigneeID, t.TimerStartedAt, t.TimeSpentSeconds).
		Scan(&t.Seq)
	if err != nil {
		return models.Task{}, insertErr(err, "task", t.ID)
	}
	return t, nil
}

// UpdateTaskDefinition rewrites the generated fields of a task, leaving its
// state and schedule untouched.
func (s *PostgresStore) UpdateTaskDefinition(t models.Task) error {
	res, err := s.db.Exec(`
		UPDATE tasks
		SET recipe_name = $1, recipe_version = $2, station = $3, required_quantity = $4, batches = $5, stale = $6
		WHERE id = $7`,
		t.RecipeName, t.RecipeVersion, t.Station, t.RequiredQuantity, t.Batches, t.Stale, t.ID)
	return affected(res, err, "task", t.ID)
}

func (s *PostgresStore) GetTask(id string) (models.Task, error) {
	var task models.Task
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1"+s.forUpdate(), id)
	if err == sql.ErrNoRows {
		return models.Task{}, errors.Wrapf(storage.ErrNotFound, "task %s", id)
	}
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *PostgresStore) ListTasksByEvent(eventID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE event_id = $1 ORDER BY seq"+s.forUpdate(), eventID)
	if err != nil {
		return nil, errors.Wrapf(err, "list tasks of event %s", eventID)
	}
	return tasks, nil
}

func (s *PostgresStore) DeleteTask(id string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id = $1", id)
	return affected(res, err, "task", id)
}

func (s *PostgresStore) DeleteTasksByEvent(eventID string) error {
	_, err := s.db.Exec("DELETE FROM tasks WHERE event_id = $1", eventID)
	return err
}

// TransitionTask is a compare-and-set on the task state: the row changes only
// if its state is still from.
func (s *PostgresStore) TransitionTask(id string, from, to models.TaskState, at time.Time) error {
	res, err := s.db.Exec("UPDATE tasks SET state = $1, updated_at = $2 WHERE id = $3 AND state = $4", to, at, id, from)
	if err != nil {
		return errors.Wrapf(err, "transition task %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var current models.TaskState
	err = s.db.Get(&current, "SELECT state FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return errors.Wrapf(storage.ErrNotFound, "task %s", id)
	}
	if err != nil {
		return err
	}
	return errors.Wrapf(storage.ErrStateMismatch, "task %s is %s, not %s", id, current, from)
}

func (s *PostgresStore) UpdateTaskSchedule(id string, shift models.Shift, date *time.Time, assigneeID string) error {
	res, err := s.db.Exec("UPDATE tasks SET shift = $1, assigned_date = $2, assignee_id = $3 WHERE id = $4",
		shift, date, assigneeID, id)
	return affected(res, err, "task", id)
}

func (s *PostgresStore) UpdateTaskTimer(id string, startedAt *time.Time, spentSeconds int64) error {
	res, err := s.db.Exec("UPDATE tasks SET timer_started_at = $1, time_spent_seconds = $2 WHERE id = $3",
		startedAt, spentSeconds, id)
	return affected(res, err, "task", id)
}

// utcDate pins the DATE column to UTC midnight, the form the services use.
func utcDate(e models.Event) models.Event {
	e.Date = time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
	return e
}
