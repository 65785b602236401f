package model

import (
	"fmt"
	"slices"
)

// Default list names created on first load.
const (
	DefaultReadLater = "Leitura Posterior"
	DefaultProjects  = "Projetos"
)

// Collection is the full set of named lists plus their display order.
// Order must always be a permutation of the keys of Lists.
type Collection struct {
	Lists map[string]List `json:"lists"`
	Order []string        `json:"listOrder"`
}

// DefaultCollection returns the collection used when nothing has been stored yet.
func DefaultCollection() Collection {
	return Collection{
		Lists: map[string]List{
			DefaultReadLater: {},
			DefaultProjects:  {},
		},
		Order: []string{DefaultReadLater, DefaultProjects},
	}
}

// Has reports whether a list with the exact name exists.
func (c Collection) Has(name string) bool {
	_, ok := c.Lists[name]
	return ok
}

// Index returns the position of name in Order, or -1.
func (c Collection) Index(name string) int {
	return slices.Index(c.Order, name)
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := Collection{
		Lists: make(map[string]List, len(c.Lists)),
		Order: slices.Clone(c.Order),
	}
	if out.Order == nil {
		out.Order = []string{}
	}
	for name, links := range c.Lists {
		out.Lists[name] = links.Clone()
	}
	return out
}

// Check verifies that Order is a permutation of the keys of Lists.
func (c Collection) Check() error {
	if len(c.Order) != len(c.Lists) {
		return fmt.Errorf("order has %d names but there are %d lists", len(c.Order), len(c.Lists))
	}
	seen := make(map[string]bool, len(c.Order))
	for _, name := range c.Order {
		if seen[name] {
			return fmt.Errorf("duplicate name %q in order", name)
		}
		seen[name] = true
		if _, ok := c.Lists[name]; !ok {
			return fmt.Errorf("name %q in order has no list", name)
		}
	}
	return nil
}

// LinkCount returns the total number of links across all lists.
func (c Collection) LinkCount() int {
	n := 0
	for _, links := range c.Lists {
		n += len(links)
	}
	return n
}
