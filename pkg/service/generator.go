package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// maxParallelGenerations bounds GenerateForDate fan-out.
const maxParallelGenerations = 4

// GenerateOptions controls a generation run.
type GenerateOptions struct {
	// Reset clears every task of the event, state included, before generating.
	Reset bool
}

// Generator derives production tasks from an event's menu.
type Generator struct {
	store  storage.Store
	logger Logger
	opts   Options
}

func NewGenerator(store storage.Store, logger Logger, opts Options) *Generator {
	return &Generator{store: store, logger: logger, opts: opts.withDefaults()}
}

// derive computes the task definitions the event's menu calls for, in menu order.
// A line whose recipe is missing aborts the whole derivation.
func (g *Generator) derive(tx storage.Store, event models.Event) ([]models.Task, error) {
	menu, err := tx.GetMenu(*event.MenuID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.Wrapf(ErrConflict, "event %s references missing menu %s", event.ID, *event.MenuID)
		}
		return nil, err
	}
	tasks := make([]models.Task, 0, len(menu.Lines))
	for i, line := range menu.Lines {
		recipe, err := tx.GetRecipe(line.RecipeID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, errors.Wrapf(ErrConflict, "menu %s line %d references missing recipe %s", menu.ID, i+1, line.RecipeID)
			}
			return nil, err
		}
		required := line.QtyPerGuest * float64(event.GuestCount)
		tasks = append(tasks, models.Task{
			ID:               models.TaskID(event.ID, recipe.ID),
			EventID:          event.ID,
			RecipeID:         recipe.ID,
			RecipeName:       recipe.Name,
			RecipeVersion:    recipe.Version,
			Station:          recipe.Station,
			RequiredQuantity: required,
			Batches:          g.opts.Rounding.Batches(required, recipe.BaseYield),
			State:            models.ToDoTaskState,
		})
	}
	return tasks, nil
}

func sameDefinition(a, b models.Task) bool {
	return a.RecipeName == b.RecipeName &&
		a.RecipeVersion == b.RecipeVersion &&
		a.Station == b.Station &&
		a.RequiredQuantity == b.RequiredQuantity &&
		a.Batches == b.Batches &&
		a.Stale == b.Stale
}

// GenerateTasks reconciles the event's task set with its current menu and
// returns the resulting tasks in creation order. Existing tasks keep their
// state; tasks that already left ToDo also keep their definition. Tasks for
// recipes no longer on the menu are marked stale or deleted depending on the
// removed line policy. The whole run commits in one transaction.
func (g *Generator) GenerateTasks(ctx context.Context, eventID string, opts GenerateOptions) (tasks []models.Task, err error) {
	var added, refreshed, removed int
	err = inTx(g.store, g.logger, func(tx storage.Store) error {
		event, err := tx.GetEvent(eventID)
		if err != nil {
			return translate(err, "event", eventID)
		}
		if !event.HasMenu() {
			return errors.Wrapf(ErrInvalidState, "event %s has no menu", eventID)
		}
		desired, err := g.derive(tx, event)
		if err != nil {
			return err
		}

		if opts.Reset {
			if err := tx.DeleteTasksByEvent(eventID); err != nil {
				return err
			}
		}
		current, err := tx.ListTasksByEvent(eventID)
		if err != nil {
			return err
		}
		existing := make(map[string]models.Task, len(current))
		for _, t := range current {
			existing[t.ID] = t
		}

		now := g.opts.Clock()
		wanted := make(map[string]struct{}, len(desired))
		for _, d := range desired {
			wanted[d.ID] = struct{}{}
			cur, ok := existing[d.ID]
			if !ok {
				d.CreatedAt = now
				d.UpdatedAt = now
				if _, err := tx.SaveTask(d); err != nil {
					return translate(err, "task", d.ID)
				}
				added++
				continue
			}
			next := cur
			next.Stale = false
			if cur.State == models.ToDoTaskState {
				next.RecipeName = d.RecipeName
				next.RecipeVersion = d.RecipeVersion
				next.Station = d.Station
				next.RequiredQuantity = d.RequiredQuantity
				next.Batches = d.Batches
			}
			if !sameDefinition(cur, next) {
				if err := tx.UpdateTaskDefinition(next); err != nil {
					return err
				}
				refreshed++
			}
		}

		for _, t := range current {
			if _, ok := wanted[t.ID]; ok {
				continue
			}
			if g.opts.RemovedLines == DeleteRemovedLines {
				if err := tx.DeleteTask(t.ID); err != nil {
					return err
				}
				removed++
				continue
			}
			if !t.Stale {
				t.Stale = true
				if err := tx.UpdateTaskDefinition(t); err != nil {
					return err
				}
				removed++
			}
		}

		tasks, err = tx.ListTasksByEvent(eventID)
		return err
	})
	if err != nil {
		g.logger.Errorf("Task generation for event %s failed: %v", eventID, err)
		return nil, err
	}
	g.opts.Cache.Evict(ctx, eventID)
	g.logger.Infof("Generated tasks for event %s: %d added, %d refreshed, %d removed from menu (reset=%t)",
		eventID, added, refreshed, removed, opts.Reset)
	return tasks, nil
}

// GenerateForDate generates tasks for every event with a menu on date.
// Each event is reconciled in its own transaction; the first failure is returned.
func (g *Generator) GenerateForDate(ctx context.Context, date time.Time, opts GenerateOptions) (map[string][]models.Task, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	events, err := g.store.ListEvents(day, day)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string][]models.Task, len(events))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelGenerations)
	for _, e := range events {
		if !e.HasMenu() {
			continue
		}
		eventID := e.ID
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			tasks, err := g.GenerateTasks(egCtx, eventID, opts)
			if err != nil {
				return errors.WithMessagef(err, "event %s", eventID)
			}
			mu.Lock()
			out[eventID] = tasks
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
