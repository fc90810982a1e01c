package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/models"
)

type memoryData struct {
	recipes map[string]models.Recipe
	menus   map[string]models.Menu
	events  map[string]models.Event
	tasks   map[string]models.Task
	nextSeq int64
}

func newMemoryData() *memoryData {
	return &memoryData{
		recipes: make(map[string]models.Recipe),
		menus:   make(map[string]models.Menu),
		events:  make(map[string]models.Event),
		tasks:   make(map[string]models.Task),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.recipes {
		c.recipes[k] = copyRecipe(v)
	}
	for k, v := range d.menus {
		c.menus[k] = copyMenu(v)
	}
	for k, v := range d.events {
		c.events[k] = copyEvent(v)
	}
	for k, v := range d.tasks {
		c.tasks[k] = copyTask(v)
	}
	c.nextSeq = d.nextSeq
	return c
}

// memoryStore implements Store in memory. A transaction works on a private
// copy of the data and swaps it in on Commit; the store lock is held from
// Begin until Commit or Rollback, so readers never observe a partial write.
type memoryStore struct {
	mu       *sync.Mutex
	data     *memoryData
	root     *memoryStore // set on transactions
	finished bool
}

func NewMemoryStore() Store {
	return &memoryStore{mu: &sync.Mutex{}, data: newMemoryData()}
}

func (m *memoryStore) isTx() bool {
	return m.root != nil
}

// do runs fn against the store data, taking the lock unless m is a transaction
// (which already holds it).
func (m *memoryStore) do(fn func(d *memoryData) error) error {
	if m.isTx() {
		if m.finished {
			return errors.New("transaction already finished")
		}
		return fn(m.data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *memoryStore) Begin() (Store, error) {
	if m.isTx() {
		return nil, errors.New("nested transactions are not supported")
	}
	m.mu.Lock()
	return &memoryStore{mu: m.mu, data: m.data.clone(), root: m}, nil
}

func (m *memoryStore) Commit() error {
	if !m.isTx() {
		return errors.New("cannot commit: not a transaction")
	}
	if m.finished {
		return errors.New("transaction already finished")
	}
	m.root.data = m.data
	m.finished = true
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Rollback() error {
	if !m.isTx() {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.finished {
		return errors.New("transaction already finished")
	}
	m.finished = true
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Close() error {
	return nil
}

func (m *memoryStore) SaveRecipe(r models.Recipe) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.recipes[r.ID]; ok {
			return errors.Wrapf(ErrAlreadyExists, "recipe %s", r.ID)
		}
		d.recipes[r.ID] = copyRecipe(r)
		return nil
	})
}

func (m *memoryStore) UpdateRecipe(r models.Recipe) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.recipes[r.ID]; !ok {
			return errors.Wrapf(ErrNotFound, "recipe %s", r.ID)
		}
		d.recipes[r.ID] = copyRecipe(r)
		return nil
	})
}

func (m *memoryStore) GetRecipe(id string) (r models.Recipe, err error) {
	err = m.do(func(d *memoryData) error {
		found, ok := d.recipes[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "recipe %s", id)
		}
		r = copyRecipe(found)
		return nil
	})
	return r, err
}

func (m *memoryStore) ListRecipes() (recipes []models.Recipe, err error) {
	err = m.do(func(d *memoryData) error {
		recipes = make([]models.Recipe, 0, len(d.recipes))
		for _, r := range d.recipes {
			recipes = append(recipes, copyRecipe(r))
		}
		return nil
	})
	sort.Slice(recipes, func(i, j int) bool {
		if recipes[i].Name == recipes[j].Name {
			return recipes[i].ID < recipes[j].ID
		}
		return recipes[i].Name < recipes[j].Name
	})
	return recipes, err
}

func (m *memoryStore) DeleteRecipe(id string) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.recipes[id]; !ok {
			return errors.Wrapf(ErrNotFound, "recipe %s", id)
		}
		delete(d.recipes, id)
		return nil
	})
}

func (m *memoryStore) SaveMenu(menu models.Menu) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.menus[menu.ID]; ok {
			return errors.Wrapf(ErrAlreadyExists, "menu %s", menu.ID)
		}
		d.menus[menu.ID] = copyMenu(menu)
		return nil
	})
}

func (m *memoryStore) UpdateMenu(menu models.Menu) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.menus[menu.ID]; !ok {
			return errors.Wrapf(ErrNotFound, "menu %s", menu.ID)
		}
		d.menus[menu.ID] = copyMenu(menu)
		return nil
	})
}

func (m *memoryStore) GetMenu(id string) (menu models.Menu, err error) {
	err = m.do(func(d *memoryData) error {
		found, ok := d.menus[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "menu %s", id)
		}
		menu = copyMenu(found)
		return nil
	})
	return menu, err
}

func (m *memoryStore) ListMenus() (menus []models.Menu, err error) {
	err = m.do(func(d *memoryData) error {
		menus = make([]models.Menu, 0, len(d.menus))
		for _, menu := range d.menus {
			menus = append(menus, copyMenu(menu))
		}
		return nil
	})
	sort.Slice(menus, func(i, j int) bool {
		if menus[i].Name == menus[j].Name {
			return menus[i].ID < menus[j].ID
		}
		return menus[i].Name < menus[j].Name
	})
	return menus, err
}

func (m *memoryStore) DeleteMenu(id string) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.menus[id]; !ok {
			return errors.Wrapf(ErrNotFound, "menu %s", id)
		}
		delete(d.menus, id)
		return nil
	})
}

func (m *memoryStore) MenusUsingRecipe(recipeID string) ([]models.Menu, error) {
	menus, err := m.ListMenus()
	if err != nil {
		return nil, err
	}
	var using []models.Menu
	for _, menu := range menus {
		if _, ok := menu.Line(recipeID); ok {
			using = append(using, menu)
		}
	}
	return using, nil
}

func (m *memoryStore) SaveEvent(e models.Event) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.events[e.ID]; ok {
			return errors.Wrapf(ErrAlreadyExists, "event %s", e.ID)
		}
		d.events[e.ID] = copyEvent(e)
		return nil
	})
}

func (m *memoryStore) UpdateEvent(e models.Event) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.events[e.ID]; !ok {
			return errors.Wrapf(ErrNotFound, "event %s", e.ID)
		}
		d.events[e.ID] = copyEvent(e)
		return nil
	})
}

func (m *memoryStore) GetEvent(id string) (e models.Event, err error) {
	err = m.do(func(d *memoryData) error {
		found, ok := d.events[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "event %s", id)
		}
		e = copyEvent(found)
		return nil
	})
	return e, err
}

// ListEvents returns events dated within [from, to]; a zero bound is open.
func (m *memoryStore) ListEvents(from, to time.Time) (events []models.Event, err error) {
	err = m.do(func(d *memoryData) error {
		for _, e := range d.events {
			if !from.IsZero() && e.Date.Before(from) {
				continue
			}
			if !to.IsZero() && e.Date.After(to) {
				continue
			}
			events = append(events, copyEvent(e))
		}
		return nil
	})
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Name < events[j].Name
	})
	return events, err
}

func (m *memoryStore) DeleteEvent(id string) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.events[id]; !ok {
			return errors.Wrapf(ErrNotFound, "event %s", id)
		}
		delete(d.events, id)
		for taskID, t := range d.tasks {
			if t.EventID == id {
				delete(d.tasks, taskID)
			}
		}
		return nil
	})
}

func (m *memoryStore) EventsUsingMenu(menuID string) (events []models.Event, err error) {
	all, err := m.ListEvents(time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.MenuID != nil && *e.MenuID == menuID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *memoryStore) SaveTask(t models.Task) (saved models.Task, err error) {
	err = m.do(func(d *memoryData) error {
		if _, ok := d.tasks[t.ID]; ok {
			return errors.Wrapf(ErrAlreadyExists, "task %s", t.ID)
		}
		d.nextSeq++
		t.Seq = d.nextSeq
		d.tasks[t.ID] = copyTask(t)
		saved = copyTask(t)
		return nil
	})
	return saved, err
}

func (m *memoryStore) UpdateTaskDefinition(t models.Task) error {
	return m.do(func(d *memoryData) error {
		cur, ok := d.tasks[t.ID]
		if !ok {
			return errors.Wrapf(ErrNotFound, "task %s", t.ID)
		}
		cur.RecipeName = t.RecipeName
		cur.RecipeVersion = t.RecipeVersion
		cur.Station = t.Station
		cur.RequiredQuantity = t.RequiredQuantity
		cur.Batches = t.Batches
		cur.Stale = t.Stale
		d.tasks[t.ID] = cur
		return nil
	})
}

func (m *memoryStore) GetTask(id string) (t models.Task, err error) {
	err = m.do(func(d *memoryData) error {
		found, ok := d.tasks[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "task %s", id)
		}
		t = copyTask(found)
		return nil
	})
	return t, err
}

func (m *memoryStore) ListTasksByEvent(eventID string) (tasks []models.Task, err error) {
	err = m.do(func(d *memoryData) error {
		tasks = []models.Task{}
		for _, t := range d.tasks {
			if t.EventID == eventID {
				tasks = append(tasks, copyTask(t))
			}
		}
		return nil
	})
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
	return tasks, err
}

func (m *memoryStore) DeleteTask(id string) error {
	return m.do(func(d *memoryData) error {
		if _, ok := d.tasks[id]; !ok {
			return errors.Wrapf(ErrNotFound, "task %s", id)
		}
		delete(d.tasks, id)
		return nil
	})
}

func (m *memoryStore) DeleteTasksByEvent(eventID string) error {
	return m.do(func(d *memoryData) error {
		for id, t := range d.tasks {
			if t.EventID == eventID {
				delete(d.tasks, id)
			}
		}
		return nil
	})
}

// TransitionTask moves a task from one state to another only if its current state is from.
func (m *memoryStore) TransitionTask(id string, from, to models.TaskState, at time.Time) error {
	return m.do(func(d *memoryData) error {
		t, ok := d.tasks[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "task %s", id)
		}
		if t.State != from {
			return errors.Wrapf(ErrStateMismatch, "task %s is %s, not %s", id, t.State, from)
		}
		t.State = to
		t.UpdatedAt = at
		d.tasks[id] = t
		return nil
	})
}

func (m *memoryStore) UpdateTaskSchedule(id string, shift models.Shift, date *time.Time, assigneeID string) error {
	return m.do(func(d *memoryData) error {
		t, ok := d.tasks[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "task %s", id)
		}
		t.Shift = shift
		t.AssignedDate = copyTime(date)
		t.AssigneeID = assigneeID
		d.tasks[id] = t
		return nil
	})
}

func (m *memoryStore) UpdateTaskTimer(id string, startedAt *time.Time, spentSeconds int64) error {
	return m.do(func(d *memoryData) error {
		t, ok := d.tasks[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "task %s", id)
		}
		t.TimerStartedAt = copyTime(startedAt)
		t.TimeSpentSeconds = spentSeconds
		d.tasks[id] = t
		return nil
	})
}

func copyRecipe(r models.Recipe) models.Recipe {
	if r.Ingredients != nil {
		r.Ingredients = append(models.Ingredients(nil), r.Ingredients...)
	}
	return r
}

func copyMenu(m models.Menu) models.Menu {
	m.Lines = append([]models.MenuLine(nil), m.Lines...)
	return m
}

func copyEvent(e models.Event) models.Event {
	if e.MenuID != nil {
		id := *e.MenuID
		e.MenuID = &id
	}
	return e
}

func copyTask(t models.Task) models.Task {
	t.AssignedDate = copyTime(t.AssignedDate)
	t.TimerStartedAt = copyTime(t.TimerStartedAt)
	return t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
