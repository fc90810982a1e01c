package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

var eventTypes = map[models.EventType]struct{}{
	models.LunchEventType:     {},
	models.DinnerEventType:    {},
	models.CorporateEventType: {},
	models.CocktailEventType:  {},
	models.WeddingEventType:   {},
	models.CoffeeEventType:    {},
	models.SportsEventType:    {},
	models.OtherEventType:     {},
	"Mediodia":                {},
	"Noche":                   {},
}

// EventService manages scheduled events.
type EventService struct {
	store  storage.Store
	logger Logger
	opts   Options
}

func NewEventService(store storage.Store, logger Logger, opts Options) *EventService {
	return &EventService{store: store, logger: logger, opts: opts.withDefaults()}
}

func validateEvent(e *models.Event) error {
	if err := validName("event", e.Name); err != nil {
		return err
	}
	if e.GuestCount <= 0 {
		return validationf("guest count must be a positive integer, got %d", e.GuestCount)
	}
	if e.Date.IsZero() {
		return validationf("event date is required")
	}
	e.Date = time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
	if e.Type != "" {
		if _, ok := eventTypes[e.Type]; !ok {
			return validationf("unknown event type %q", e.Type)
		}
	}
	if e.MenuID != nil {
		id := strings.TrimSpace(*e.MenuID)
		if id == "" {
			e.MenuID = nil
		} else {
			e.MenuID = &id
		}
	}
	return nil
}

func checkMenuReference(tx storage.Store, e models.Event) error {
	if !e.HasMenu() {
		return nil
	}
	if _, err := tx.GetMenu(*e.MenuID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrReference, "event %s: unknown menu %s", e.Name, *e.MenuID)
		}
		return err
	}
	return nil
}

// CreateEvent validates and stores an event, returning its id.
func (s *EventService) CreateEvent(e models.Event) (string, error) {
	if err := validateEvent(&e); err != nil {
		return "", err
	}
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.opts.Clock()
	e.CreatedAt = now
	e.UpdatedAt = now
	err := inTx(s.store, s.logger, func(tx storage.Store) error {
		if err := checkMenuReference(tx, e); err != nil {
			return err
		}
		return translate(tx.SaveEvent(e), "event", e.ID)
	})
	if err != nil {
		return "", err
	}
	s.logger.Infof("Created event '%s' (%s) on %s for %d guests", e.Name, e.ID, e.Date.Format(models.DateLayout), e.GuestCount)
	return e.ID, nil
}

// UpdateEvent replaces an event. Its tasks follow only on the next generation.
func (s *EventService) UpdateEvent(e models.Event) (updated models.Event, err error) {
	if err := validateEvent(&e); err != nil {
		return models.Event{}, err
	}
	err = inTx(s.store, s.logger, func(tx storage.Store) error {
		cur, err := tx.GetEvent(e.ID)
		if err != nil {
			return translate(err, "event", e.ID)
		}
		if err := checkMenuReference(tx, e); err != nil {
			return err
		}
		e.CreatedAt = cur.CreatedAt
		e.UpdatedAt = s.opts.Clock()
		if err := tx.UpdateEvent(e); err != nil {
			return translate(err, "event", e.ID)
		}
		updated = e
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	s.logger.Infof("Updated event %s", e.ID)
	return updated, nil
}

func (s *EventService) GetEvent(id string) (models.Event, error) {
	e, err := s.store.GetEvent(id)
	if err != nil {
		return models.Event{}, translate(err, "event", id)
	}
	return e, nil
}

// ListEvents returns events between from and to inclusive; zero bounds are open.
func (s *EventService) ListEvents(from, to time.Time) ([]models.Event, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, validationf("range end %s is before start %s", to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	return s.store.ListEvents(from, to)
}

// DeleteEvent removes an event together with its production tasks.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := translate(s.store.DeleteEvent(id), "event", id); err != nil {
		return err
	}
	s.opts.Cache.Evict(ctx, id)
	s.logger.Infof("Deleted event %s and its tasks", id)
	return nil
}
