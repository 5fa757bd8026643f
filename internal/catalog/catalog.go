// Package catalog exposes show metadata to the booking engine.  The engine
// only ever asks one question — which seats exist in a show and what they
// cost — so the interface stays a single method with two backends: an
// in-memory catalog for tests and standalone runs, and a MySQL adapter for
// deployments that already keep inventory in a database.
package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/showgrid/booking/internal/model"
)

// ErrShowNotFound is returned when the requested show does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrShowNotFound = errors.New("show not found")

// Catalog resolves show ids to their seat universe.
type Catalog interface {
	// GetShow returns the show's metadata and seat universe.  Callers must
	// not mutate the returned value.
	GetShow(ctx context.Context, showID uint64) (*model.Show, error)
}

// InMemory is a Catalog backed by a plain map.  Safe for concurrent use.
type InMemory struct {
	mu    sync.RWMutex
	shows map[uint64]*model.Show
}

// NewInMemory returns an empty in-memory catalog.
func NewInMemory() *InMemory {
	return &InMemory{shows: make(map[uint64]*model.Show)}
}

// AddShow registers (or replaces) a show.
func (c *InMemory) AddShow(s *model.Show) {
	c.mu.Lock()
	c.shows[s.ID] = s
	c.mu.Unlock()
}

func (c *InMemory) GetShow(_ context.Context, showID uint64) (*model.Show, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shows[showID]
	if !ok {
		return nil, ErrShowNotFound
	}
	return s, nil
}
