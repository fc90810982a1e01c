package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rai1001/CulinaryOs/pkg/models"
)

// Logger defines the logging interface used by the services
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// RoundingPolicy turns a required quantity into a number of recipe batches.
type RoundingPolicy string

const (
	CeilRounding  RoundingPolicy = "ceil"
	ExactRounding RoundingPolicy = "exact"
)

// batchEpsilon absorbs float noise such as 0.1*30 = 3.0000000000000004.
const batchEpsilon = 1e-9

func ParseRoundingPolicy(s string) (RoundingPolicy, error) {
	switch p := RoundingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CeilRounding, nil
	case CeilRounding, ExactRounding:
		return p, nil
	}
	return "", validationf("unknown rounding policy %q", s)
}

// Batches returns how many batches of baseYield cover required.
func (p RoundingPolicy) Batches(required, baseYield float64) float64 {
	if baseYield <= 0 {
		return 0
	}
	exact := required / baseYield
	if p == ExactRounding {
		return exact
	}
	// The tolerance scales with the quotient so tiny requirements still need one batch.
	return math.Ceil(exact - exact*batchEpsilon)
}

// RemovedLinePolicy decides what regeneration does with tasks whose recipe left the menu.
type RemovedLinePolicy string

const (
	StaleRemovedLines  RemovedLinePolicy = "stale"
	DeleteRemovedLines RemovedLinePolicy = "delete"
)

func ParseRemovedLinePolicy(s string) (RemovedLinePolicy, error) {
	switch p := RemovedLinePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return StaleRemovedLines, nil
	case StaleRemovedLines, DeleteRemovedLines:
		return p, nil
	}
	return "", validationf("unknown removed line policy %q", s)
}

// BoardCache caches the task set of an event for board reads.
type BoardCache interface {
	Get(ctx context.Context, eventID string) ([]models.Task, bool)
	Set(ctx context.Context, eventID string, tasks []models.Task)
	Evict(ctx context.Context, eventID string)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]models.Task, bool) { return nil, false }
func (noopCache) Set(context.Context, string, []models.Task)        {}
func (noopCache) Evict(context.Context, string)                     {}

// guardedCache counts evictions per event so that a read which loaded tasks
// before an eviction never writes them back afterwards.
type guardedCache struct {
	BoardCache
	mu       sync.Mutex
	versions map[string]uint64
}

func newGuardedCache(c BoardCache) *guardedCache {
	return &guardedCache{BoardCache: c, versions: make(map[string]uint64)}
}

func (c *guardedCache) version(eventID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[eventID]
}

func (c *guardedCache) Evict(ctx context.Context, eventID string) {
	c.mu.Lock()
	c.versions[eventID]++
	c.mu.Unlock()
	c.BoardCache.Evict(ctx, eventID)
}

// fill stores tasks only if no eviction happened since seen was read.
func (c *guardedCache) fill(ctx context.Context, eventID string, seen uint64, tasks []models.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[eventID] != seen {
		return false
	}
	c.BoardCache.Set(ctx, eventID, tasks)
	return true
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Rounding      RoundingPolicy
	RemovedLines  RemovedLinePolicy
	ExtraStations []models.Station
	Cache         BoardCache
	Clock         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Rounding == "" {
		o.Rounding = CeilRounding
	}
	if o.RemovedLines == "" {
		o.RemovedLines = StaleRemovedLines
	}
	if o.Cache == nil {
		o.Cache = noopCache{}
	}
	if _, ok := o.Cache.(*guardedCache); !ok {
		o.Cache = newGuardedCache(o.Cache)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
