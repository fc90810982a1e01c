package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	internal_storage "github.com/rai1001/CulinaryOs/internal/storage"
	"github.com/rai1001/CulinaryOs/internal/testutil"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
	"github.com/rai1001/CulinaryOs/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{})  {}
func (l logger) Errorf(format string, args ...interface{}) {}

func eventDate() time.Time {
	return time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
}

// seed stores recipe tortilla, menu m1 and event e1 through store.
func seed(t *testing.T, store storage.Store) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.SaveRecipe(models.Recipe{
		ID: "tortilla", Name: "Tortilla", Station: models.HotStation, BaseYield: 4, Version: 1,
		Ingredients: models.Ingredients{{Name: "huevo", Quantity: 6, Unit: "ud"}},
		CreatedAt:   now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveRecipe(models.Recipe{
		ID: "flan", Name: "Flan", Station: models.PastryStation, BaseYield: 10, Version: 1,
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveMenu(models.Menu{
		ID: "m1", Name: "Menu Test", Price: 25, Status: models.ActiveMenuStatus, CreatedAt: now, UpdatedAt: now,
		Lines: []models.MenuLine{
			{MenuID: "m1", RecipeID: "tortilla", QtyPerGuest: 0.5, Position: 0},
			{MenuID: "m1", RecipeID: "flan", QtyPerGuest: 1, Position: 1},
		},
	}))
	menuID := "m1"
	require.NoError(t, store.SaveEvent(models.Event{
		ID: "e1", Name: "Boda Test", Date: eventDate(), GuestCount: 100, Type: models.WeddingEventType,
		MenuID: &menuID, CreatedAt: now, UpdatedAt: now,
	}))
}

func newTask(eventID, recipeID string) models.Task {
	now := time.Now().UTC()
	return models.Task{
		ID: models.TaskID(eventID, recipeID), EventID: eventID, RecipeID: recipeID, RecipeName: recipeID,
		RecipeVersion: 1, Station: models.HotStation, RequiredQuantity: 50, Batches: 13,
		State: models.ToDoTaskState, CreatedAt: now, UpdatedAt: now,
	}
}

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	root, err := internal_storage.NewPostgresStore(testDB.ConnStr)
	require.NoError(t, err)
	defer root.Close()

	// Helper to create a transactional store that is rolled back after the subtest
	newTxStore := func(t *testing.T) storage.Store {
		txStore, err := root.Begin()
		require.NoError(t, err)
		t.Cleanup(func() { _ = txStore.Rollback() })
		return txStore
	}

	t.Run("RecipeRoundTrip", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)

		r, err := store.GetRecipe("tortilla")
		require.NoError(t, err)
		assert.Equal(t, "Tortilla", r.Name)
		assert.Equal(t, 4.0, r.BaseYield)
		assert.Equal(t, models.Ingredients{{Name: "huevo", Quantity: 6, Unit: "ud"}}, r.Ingredients)

		r.Version = 2
		r.BaseYield = 5
		require.NoError(t, store.UpdateRecipe(r))
		r, err = store.GetRecipe("tortilla")
		require.NoError(t, err)
		assert.Equal(t, 2, r.Version)
		assert.Equal(t, 5.0, r.BaseYield)

		recipes, err := store.ListRecipes()
		require.NoError(t, err)
		require.Len(t, recipes, 2)
		assert.Equal(t, "flan", recipes[0].ID)
	})

	t.Run("DuplicateRecipe", func(t *testing.T) {
		store := newTxStore(t)
		err := store.SaveRecipe(models.Recipe{ID: "x", Name: "X", Station: models.HotStation, BaseYield: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})
		require.NoError(t, err)
		err = store.SaveRecipe(models.Recipe{ID: "x", Name: "X", Station: models.HotStation, BaseYield: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()})
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("GetNonExisting", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetRecipe("ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetMenu("ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetEvent("ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetTask("ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.UpdateRecipe(models.Recipe{ID: "ghost"}), storage.ErrNotFound)
	})

	t.Run("MenuLinesKeepOrder", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)

		m, err := store.GetMenu("m1")
		require.NoError(t, err)
		require.Len(t, m.Lines, 2)
		assert.Equal(t, "tortilla", m.Lines[0].RecipeID)
		assert.Equal(t, "flan", m.Lines[1].RecipeID)

		m.Lines = []models.MenuLine{{MenuID: "m1", RecipeID: "flan", QtyPerGuest: 2}}
		require.NoError(t, store.UpdateMenu(m))
		m, err = store.GetMenu("m1")
		require.NoError(t, err)
		require.Len(t, m.Lines, 1)
		assert.Equal(t, 2.0, m.Lines[0].QtyPerGuest)

		using, err := store.MenusUsingRecipe("flan")
		require.NoError(t, err)
		require.Len(t, using, 1)
		assert.Len(t, using[0].Lines, 1)
		using, err = store.MenusUsingRecipe("tortilla")
		require.NoError(t, err)
		assert.Empty(t, using)

		menus, err := store.ListMenus()
		require.NoError(t, err)
		require.Len(t, menus, 1)
		assert.Len(t, menus[0].Lines, 1)
	})

	t.Run("EventsByDate", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)
		later := models.Event{ID: "e2", Name: "Cena", Date: eventDate().AddDate(0, 0, 7), GuestCount: 10, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		require.NoError(t, store.SaveEvent(later))

		e, err := store.GetEvent("e1")
		require.NoError(t, err)
		assert.True(t, e.Date.Equal(eventDate()))
		require.NotNil(t, e.MenuID)
		assert.Equal(t, "m1", *e.MenuID)

		all, err := store.ListEvents(time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "e1", all[0].ID)

		firstWeek, err := store.ListEvents(eventDate(), eventDate().AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, firstWeek, 1)
		assert.Equal(t, "e1", firstWeek[0].ID)

		using, err := store.EventsUsingMenu("m1")
		require.NoError(t, err)
		assert.Len(t, using, 1)
	})

	t.Run("SaveTaskAssignsSequence", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)

		first, err := store.SaveTask(newTask("e1", "tortilla"))
		require.NoError(t, err)
		second, err := store.SaveTask(newTask("e1", "flan"))
		require.NoError(t, err)
		assert.Greater(t, second.Seq, first.Seq)

		_, err = store.SaveTask(newTask("e1", "flan"))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("ListTasksByEventInCreationOrder", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)
		_, err := store.SaveTask(newTask("e1", "tortilla"))
		require.NoError(t, err)
		_, err = store.SaveTask(newTask("e1", "flan"))
		require.NoError(t, err)

		tasks, err := store.ListTasksByEvent("e1")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "tortilla", tasks[0].RecipeID)
		assert.Equal(t, "flan", tasks[1].RecipeID)

		none, err := store.ListTasksByEvent("ghost")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("TransitionTaskCompareAndSet", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)
		task, err := store.SaveTask(newTask("e1", "tortilla"))
		require.NoError(t, err)

		at := time.Now().UTC().Add(time.Minute)
		require.NoError(t, store.TransitionTask(task.ID, models.ToDoTaskState, models.InProgressTaskState, at))
		err = store.TransitionTask(task.ID, models.ToDoTaskState, models.InProgressTaskState, at)
		assert.ErrorIs(t, err, storage.ErrStateMismatch)
		err = store.TransitionTask("ghost", models.ToDoTaskState, models.InProgressTaskState, at)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		got, err := store.GetTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.InProgressTaskState, got.State)
		assert.WithinDuration(t, at, got.UpdatedAt, time.Millisecond)
	})

	t.Run("UpdateTaskDefinitionKeepsState", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)
		task, err := store.SaveTask(newTask("e1", "tortilla"))
		require.NoError(t, err)
		require.NoError(t, store.TransitionTask(task.ID, models.ToDoTaskState, models.InProgressTaskState, time.Now()))

		task.RequiredQuantity = 80
		task.Batches = 20
		task.Stale = true
		task.State = models.ToDoTaskState
		require.NoError(t, store.UpdateTaskDefinition(task))

		got, err := store.GetTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, 80.0, got.RequiredQuantity)
		assert.True(t, got.Stale)
		assert.Equal(t, models.InProgressTaskState, got.State)
	})

	t.Run("ScheduleAndTimer", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)
		task, err := store.SaveTask(newTask("e1", "tortilla"))
		require.NoError(t, err)

		day := eventDate().AddDate(0, 0, -1)
		require.NoError(t, store.UpdateTaskSchedule(task.ID, models.MorningShift, &day, "cook-1"))
		started := time.Now().UTC()
		require.NoError(t, store.UpdateTaskTimer(task.ID, &started, 42))

		got, err := store.GetTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MorningShift, got.Shift)
		require.NotNil(t, got.AssignedDate)
		assert.Equal(t, day.Format(models.DateLayout), got.AssignedDate.UTC().Format(models.DateLayout))
		assert.Equal(t, "cook-1", got.AssigneeID)
		require.NotNil(t, got.TimerStartedAt)
		assert.Equal(t, int64(42), got.TimeSpentSeconds)

		require.NoError(t, store.UpdateTaskTimer(task.ID, nil, 50))
		got, err = store.GetTask(task.ID)
		require.NoError(t, err)
		assert.Nil(t, got.TimerStartedAt)
	})

	t.Run("DeleteEventCascadesTasks", func(t *testing.T) {
		store := newTxStore(t)
		seed(t, store)
		task, err := store.SaveTask(newTask("e1", "tortilla"))
		require.NoError(t, err)

		require.NoError(t, store.DeleteEvent("e1"))
		_, err = store.GetTask(task.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.DeleteEvent("e1"), storage.ErrNotFound)
	})

	t.Run("CommitIsVisible", func(t *testing.T) {
		tx, err := root.Begin()
		require.NoError(t, err)
		require.NoError(t, tx.SaveRecipe(models.Recipe{ID: "committed", Name: "C", Station: models.ColdStation, BaseYield: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}))
		_, err = root.GetRecipe("committed")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, tx.Commit())

		_, err = root.GetRecipe("committed")
		require.NoError(t, err)
		require.NoError(t, root.DeleteRecipe("committed"))
	})
}

func TestPostgresEngine(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	engine := service.NewEngine(store, logger{}, service.Options{})
	_, err = engine.Catalog.CreateRecipe(models.Recipe{ID: "tortilla", Name: "Tortilla", Station: models.HotStation, BaseYield: 4})
	require.NoError(t, err)
	_, err = engine.Catalog.CreateMenu(models.Menu{ID: "m1", Name: "Menu Test", Lines: []models.MenuLine{{RecipeID: "tortilla", QtyPerGuest: 0.5}}})
	require.NoError(t, err)
	menuID := "m1"
	_, err = engine.Events.CreateEvent(models.Event{ID: "e1", Name: "Boda Test", Date: eventDate(), GuestCount: 100, MenuID: &menuID})
	require.NoError(t, err)

	tasks, err := engine.Generator.GenerateTasks(ctx, "e1", service.GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 50.0, tasks[0].RequiredQuantity)
	assert.Equal(t, 13.0, tasks[0].Batches)

	again, err := engine.Generator.GenerateTasks(ctx, "e1", service.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, tasks[0].ID, again[0].ID)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Board.MoveTask(ctx, tasks[0].ID, models.ToDoTaskState, models.InProgressTaskState)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, service.ErrInvalidTransition)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	view, err := engine.Board.ListByEvent(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, view.Stations, 1)
	assert.Equal(t, models.InProgressTaskState, view.Stations[0].Tasks[0].State)

	require.NoError(t, engine.Events.DeleteEvent(ctx, "e1"))
	_, err = engine.Board.ListByEvent(ctx, "e1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
