// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package netlist

import "github.com/apex/log"

// Equivalence decides whether two components share a BOM line.
type Equivalence func(a, b *Component) bool

// Group is one BOM line: equivalent components in reference order.
type Group []*Component

// First is the component whose data stands for the group.
func (g Group) First() *Component {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// Refs returns the group's references.
func (g Group) Refs() []string {
	refs := make([]string, 0, len(g))
	for _, c := range g {
		refs = append(refs, c.Ref)
	}
	return refs
}

// Footprint returns the first non-empty footprint in the group.
func (g Group) Footprint() string {
	for _, c := range g {
		if c.Footprint != "" {
			return c.Footprint
		}
	}
	return ""
}

// ByPartNumber groups components sharing an LCSC part number. Components
// without one never group. A shared part number whose footprint, value or
// symbol differ is reported and kept apart.
func ByPartNumber(a, b *Component) bool {
	pn := a.PartNumber()
	if pn == "" || pn != b.PartNumber() {
		return false
	}

	result := true
	checks := []struct {
		name   string
		va, vb string
	}{
		{"footprint", a.Footprint, b.Footprint},
		{"value", a.Value, b.Value},
		{"libpart", a.LibPart(), b.LibPart()},
	}
	for _, c := range checks {
		if c.va != c.vb {
			result = false
			log.WithFields(log.Fields{
				"part":  pn,
				"a":     a.Ref,
				"b":     b.Ref,
				"field": c.name,
			}).Warnf("matching part number but %s mismatch: <%s> - <%s>", c.name, c.va, c.vb)
		}
	}
	return result
}

// GroupComponents partitions comps by eq, comparing each component with the
// first member of every existing group. Group order follows the first member.
func GroupComponents(comps []*Component, eq Equivalence) []Group {
	if eq == nil {
		eq = ByPartNumber
	}

	var groups []Group
outer:
	for _, c := range comps {
		for i := range groups {
			if eq(groups[i][0], c) {
				groups[i] = append(groups[i], c)
				continue outer
			}
		}
		groups = append(groups, Group{c})
	}
	return groups
}
