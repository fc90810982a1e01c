package service

import "github.com/rai1001/CulinaryOs/pkg/storage"

// Engine bundles the planning services over one store.
type Engine struct {
	Catalog   *Catalog
	Events    *EventService
	Generator *Generator
	Board     *Board
	Planner   *Planner
}

func NewEngine(store storage.Store, logger Logger, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		Catalog:   NewCatalog(store, logger, opts),
		Events:    NewEventService(store, logger, opts),
		Generator: NewGenerator(store, logger, opts),
		Board:     NewBoard(store, logger, opts),
		Planner:   NewPlanner(store, logger, opts),
	}
}
