// Package catalogtest provides an in-memory catalog.Store for tests.
package catalogtest

import (
	"context"
	"sync"

	"github.com/triage-ai/toolhost/internal/catalog"
)

// Store is an in-memory catalog that records every write it receives.
type Store struct {
	mu       sync.Mutex
	products map[int]catalog.Product
	writes   []Write

	// Err, when set, fails every call.
	Err error
	// UpdateErr, when set, fails writes only.
	UpdateErr error
}

// Write is one recorded Update call.
type Write struct {
	ID     int
	Update catalog.Update
}

// New creates a store holding the given products.
func New(products ...catalog.Product) *Store {
	s := &Store{products: make(map[int]catalog.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// List returns products in map order, like a catalog that makes no ordering promise.
func (s *Store) List(_ context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id int) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (s *Store) Update(_ context.Context, id int, upd catalog.Update) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Stock != nil {
		p.Stock = *upd.Stock
	}
	s.products[id] = p
	s.writes = append(s.writes, Write{ID: id, Update: upd})
	return &p, nil
}

// Product returns the current state of a product.
func (s *Store) Product(id int) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// Put inserts or replaces a product without recording a write.
func (s *Store) Put(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// Writes returns the recorded writes.
func (s *Store) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}
