package service

import (
	"context"
	"time"

	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

// Planner schedules tasks onto shifts and tracks the time spent on them.
// It never touches task state or the generated definition.
type Planner struct {
	store  storage.Store
	logger Logger
	opts   Options
}

func NewPlanner(store storage.Store, logger Logger, opts Options) *Planner {
	return &Planner{store: store, logger: logger, opts: opts.withDefaults()}
}

// AssignShift places a task on a date and shift. NoShift with a nil date unassigns it.
func (p *Planner) AssignShift(ctx context.Context, taskID string, date *time.Time, shift models.Shift, assigneeID string) (models.Task, error) {
	switch shift {
	case models.NoShift:
		if date != nil {
			return models.Task{}, validationf("a date needs a shift")
		}
	case models.MorningShift, models.AfternoonShift:
		if date == nil {
			return models.Task{}, validationf("shift %s needs a date", shift)
		}
		d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		date = &d
	default:
		return models.Task{}, validationf("unknown shift %q", shift)
	}
	if err := p.store.UpdateTaskSchedule(taskID, shift, date, assigneeID); err != nil {
		return models.Task{}, translate(err, "task", taskID)
	}
	task, err := p.store.GetTask(taskID)
	if err != nil {
		return models.Task{}, translate(err, "task", taskID)
	}
	p.opts.Cache.Evict(ctx, task.EventID)
	p.logger.Infof("Scheduled task %s on %v shift %s", taskID, date, shift)
	return task, nil
}

// ToggleTimer starts the task timer, or stops it and adds the elapsed whole seconds.
func (p *Planner) ToggleTimer(ctx context.Context, taskID string) (task models.Task, err error) {
	err = inTx(p.store, p.logger, func(tx storage.Store) error {
		cur, err := tx.GetTask(taskID)
		if err != nil {
			return translate(err, "task", taskID)
		}
		now := p.opts.Clock()
		if cur.TimerStartedAt != nil {
			elapsed := int64(now.Sub(*cur.TimerStartedAt) / time.Second)
			if elapsed < 0 {
				elapsed = 0
			}
			cur.TimeSpentSeconds += elapsed
			cur.TimerStartedAt = nil
		} else {
			cur.TimerStartedAt = &now
		}
		if err := tx.UpdateTaskTimer(taskID, cur.TimerStartedAt, cur.TimeSpentSeconds); err != nil {
			return err
		}
		task = cur
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	p.opts.Cache.Evict(ctx, task.EventID)
	return task, nil
}
