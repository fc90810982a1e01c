package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

// StationLane holds one station's tasks in creation order.
type StationLane struct {
	Station models.Station `json:"station"`
	Tasks   []models.Task  `json:"tasks"`
}

// ByState returns the lane's tasks in state, keeping creation order.
func (l StationLane) ByState(state models.TaskState) []models.Task {
	var out []models.Task
	for _, t := range l.Tasks {
		if t.State == state {
			out = append(out, t)
		}
	}
	return out
}

// BoardView is the kanban board of one event.
type BoardView struct {
	EventID  string        `json:"event_id"`
	Stations []StationLane `json:"stations"`
}

// StationSummary counts a station's tasks per state.
type StationSummary struct {
	Station models.Station           `json:"station"`
	Counts  map[models.TaskState]int `json:"counts"`
	Stale   int                      `json:"stale"`
}

// Board owns task state and the transitions between board lanes.
type Board struct {
	store  storage.Store
	logger Logger
	opts   Options
}

func NewBoard(store storage.Store, logger Logger, opts Options) *Board {
	return &Board{store: store, logger: logger, opts: opts.withDefaults()}
}

// MoveTask moves a task from one lane to another. It fails with
// ErrInvalidTransition when to is not reachable from from, or when from no
// longer matches the recorded state because someone else moved the task first.
func (b *Board) MoveTask(ctx context.Context, taskID string, from, to models.TaskState) (models.Task, error) {
	fromState, ok := models.ParseTaskState(string(from))
	if !ok {
		return models.Task{}, validationf("unknown task state %q", from)
	}
	toState, ok2 := models.ParseTaskState(string(to))
	if !ok2 {
		return models.Task{}, validationf("unknown task state %q", to)
	}
	from, to = fromState, toState
	if !models.CanTransition(from, to) {
		return models.Task{}, errors.Wrapf(ErrInvalidTransition, "cannot move task %s from %s to %s", taskID, from, to)
	}
	err := b.store.TransitionTask(taskID, from, to, b.opts.Clock())
	switch {
	case errors.Is(err, storage.ErrStateMismatch):
		return models.Task{}, errors.Wrap(ErrInvalidTransition, err.Error())
	case err != nil:
		return models.Task{}, translate(err, "task", taskID)
	}
	task, err := b.store.GetTask(taskID)
	if err != nil {
		return models.Task{}, translate(err, "task", taskID)
	}
	b.opts.Cache.Evict(ctx, task.EventID)
	b.logger.Infof("Moved task %s (%s) from %s to %s", taskID, task.RecipeName, from, to)
	return task, nil
}

func (b *Board) eventTasks(ctx context.Context, eventID string) ([]models.Task, error) {
	cache := b.opts.Cache.(*guardedCache)
	if tasks, ok := cache.Get(ctx, eventID); ok {
		return tasks, nil
	}
	seen := cache.version(eventID)
	if _, err := b.store.GetEvent(eventID); err != nil {
		return nil, translate(err, "event", eventID)
	}
	tasks, err := b.store.ListTasksByEvent(eventID)
	if err != nil {
		return nil, err
	}
	if !cache.fill(ctx, eventID, seen, tasks) {
		b.logger.Infof("Board of event %s changed while loading, not caching it", eventID)
	}
	return tasks, nil
}

// ListByEvent returns the event's tasks grouped by station. Stations appear in
// the order their first task was created; tasks keep creation order.
func (b *Board) ListByEvent(ctx context.Context, eventID string) (BoardView, error) {
	tasks, err := b.eventTasks(ctx, eventID)
	if err != nil {
		return BoardView{}, err
	}
	view := BoardView{EventID: eventID, Stations: []StationLane{}}
	index := make(map[models.Station]int)
	for _, t := range tasks {
		i, ok := index[t.Station]
		if !ok {
			i = len(view.Stations)
			index[t.Station] = i
			view.Stations = append(view.Stations, StationLane{Station: t.Station})
		}
		view.Stations[i].Tasks = append(view.Stations[i].Tasks, t)
	}
	return view, nil
}

// Summary counts tasks per station and state.
func (b *Board) Summary(ctx context.Context, eventID string) ([]StationSummary, error) {
	view, err := b.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]StationSummary, 0, len(view.Stations))
	for _, lane := range view.Stations {
		s := StationSummary{Station: lane.Station, Counts: make(map[models.TaskState]int, len(models.TaskStates))}
		for _, state := range models.TaskStates {
			s.Counts[state] = 0
		}
		for _, t := range lane.Tasks {
			s.Counts[t.State]++
			if t.Stale {
				s.Stale++
			}
		}
		out = append(out, s)
	}
	return out, nil
}
