// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import "sync/atomic"

// Source yields catalog snapshots. *Store and Static implement it.
type Source interface {
	Get() *Catalog
}

// Static is a Source that always returns the same snapshot.
type Static struct{ C *Catalog }

// Get returns s.C, or the default catalog when s.C is nil.
func (s Static) Get() *Catalog {
	if s.C == nil {
		return Default()
	}
	return s.C
}

// Store publishes the current catalog snapshot. Safe for concurrent use.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a Store holding c. A nil c holds the default catalog.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	if c == nil {
		c = Default()
	}
	s.current.Store(c)
	return s
}

// Get returns the current snapshot.
func (s *Store) Get() *Catalog {
	return s.current.Load()
}

// Set replaces the current snapshot. Nil is ignored.
func (s *Store) Set(c *Catalog) {
	if c == nil {
		return
	}
	s.current.Store(c)
}
