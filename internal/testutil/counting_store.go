package testutil

import (
	"sync/atomic"
	"time"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
)

// CountingStore wraps a Store and records how many calls were in flight at
// once. Each call holds for Delay to widen any race window.
type CountingStore struct {
	ports.Store
	Delay time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int64
}

// NewCountingStore wraps s.
func NewCountingStore(s ports.Store, delay time.Duration) *CountingStore {
	return &CountingStore{Store: s, Delay: delay}
}

func (c *CountingStore) enter() func() {
	c.calls.Add(1)
	n := c.inFlight.Add(1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	return func() { c.inFlight.Add(-1) }
}

// MaxConcurrent returns the largest number of simultaneous calls observed.
func (c *CountingStore) MaxConcurrent() int { return int(c.maxSeen.Load()) }

// Calls returns the total number of calls.
func (c *CountingStore) Calls() int64 { return c.calls.Load() }

func (c *CountingStore) Insert(graph string, triples []entities.Triple) error {
	defer c.enter()()
	return c.Store.Insert(graph, triples)
}

func (c *CountingStore) DropGraph(graph string) (int, error) {
	defer c.enter()()
	return c.Store.DropGraph(graph)
}

func (c *CountingStore) Match(p entities.Pattern) ([]entities.TripleRef, error) {
	defer c.enter()()
	return c.Store.Match(p)
}

func (c *CountingStore) Term(id entities.TermID) (entities.Term, bool) {
	defer c.enter()()
	return c.Store.Term(id)
}
