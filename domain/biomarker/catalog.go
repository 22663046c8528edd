package biomarker

import (
	"fmt"
	"strings"
	"sync/atomic"

	"flomentum/domain/core"
)

// Catalog is the process-wide biomarker reference store. Readers take an
// immutable Snapshot so a single normalisation call observes consistent data
// even while a hot reload swaps the catalog underneath.
type Catalog struct {
	snapshot atomic.Pointer[Snapshot]
}

// NewCatalog creates a catalog holding the given snapshot
func NewCatalog(snap *Snapshot) *Catalog {
	c := &Catalog{}
	c.snapshot.Store(snap)
	return c
}

// Snapshot returns the current immutable snapshot
func (c *Catalog) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Swap atomically replaces the snapshot (hot reload)
func (c *Catalog) Swap(snap *Snapshot) {
	c.snapshot.Store(snap)
}

// Snapshot is an immutable, fully-indexed view of the biomarker definitions.
type Snapshot struct {
	byID      map[core.BiomarkerID]*Biomarker
	bySynonym map[string]core.BiomarkerID
	// conversions[biomarkerID][fromUnit] lists outgoing edges
	conversions map[core.BiomarkerID]map[string][]UnitConversion
	version     core.Hash
}

// BuildSnapshot indexes a set of biomarker definitions. Synonym labels are
// matched case-insensitively; the canonical name is always a synonym of itself.
func BuildSnapshot(markers []Biomarker, version core.Hash) (*Snapshot, error) {
	snap := &Snapshot{
		byID:        make(map[core.BiomarkerID]*Biomarker, len(markers)),
		bySynonym:   make(map[string]core.BiomarkerID),
		conversions: make(map[core.BiomarkerID]map[string][]UnitConversion),
		version:     version,
	}

	for i := range markers {
		m := markers[i]
		if m.ID == "" {
			return nil, fmt.Errorf("biomarker %q has no id", m.CanonicalName)
		}
		if m.CanonicalUnit == "" {
			return nil, fmt.Errorf("biomarker %s has no canonical unit", m.ID)
		}
		if _, dup := snap.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate biomarker id %s", m.ID)
		}
		snap.byID[m.ID] = &m

		labels := append([]string{m.CanonicalName}, m.Synonyms...)
		for _, label := range labels {
			key := normaliseLabel(label)
			if key == "" {
				continue
			}
			if owner, dup := snap.bySynonym[key]; dup && owner != m.ID {
				return nil, fmt.Errorf("synonym %q claimed by both %s and %s", label, owner, m.ID)
			}
			snap.bySynonym[key] = m.ID
		}

		edges := make(map[string][]UnitConversion)
		for _, conv := range m.Conversions {
			if conv.Multiplier == 0 {
				return nil, fmt.Errorf("biomarker %s: zero multiplier %s->%s", m.ID, conv.FromUnit, conv.ToUnit)
			}
			edges[conv.FromUnit] = append(edges[conv.FromUnit], conv)
		}
		snap.conversions[m.ID] = edges
	}

	return snap, nil
}

// Version identifies the loaded catalog content
func (s *Snapshot) Version() core.Hash { return s.version }

// Len returns the number of biomarkers in the snapshot
func (s *Snapshot) Len() int { return len(s.byID) }

// Resolve maps a raw label to a biomarker definition
func (s *Snapshot) Resolve(label string) (*Biomarker, bool) {
	id, ok := s.bySynonym[normaliseLabel(label)]
	if !ok {
		return nil, false
	}
	return s.byID[id], true
}

// Get returns a biomarker definition by id
func (s *Snapshot) Get(id core.BiomarkerID) (*Biomarker, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// All returns every biomarker definition, for listing endpoints.
func (s *Snapshot) All() []*Biomarker {
	out := make([]*Biomarker, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	return out
}

// ConversionPath finds a one- or two-hop conversion chain from fromUnit to
// toUnit for the given biomarker. Returns false if no path exists.
func (s *Snapshot) ConversionPath(id core.BiomarkerID, fromUnit, toUnit string) ([]UnitConversion, bool) {
	if fromUnit == toUnit {
		return nil, true
	}
	edges := s.conversions[id]
	for _, e := range edges[fromUnit] {
		if e.ToUnit == toUnit {
			return []UnitConversion{e}, true
		}
	}
	// Two hops through an intermediate unit
	for _, first := range edges[fromUnit] {
		for _, second := range edges[first.ToUnit] {
			if second.ToUnit == toUnit {
				return []UnitConversion{first, second}, true
			}
		}
	}
	return nil, false
}

// Convert applies the conversion path from fromUnit to toUnit
func (s *Snapshot) Convert(id core.BiomarkerID, value float64, fromUnit, toUnit string) (float64, error) {
	path, ok := s.ConversionPath(id, fromUnit, toUnit)
	if !ok {
		return 0, core.NewUnitConversionError(id.String(), fromUnit, toUnit)
	}
	for _, edge := range path {
		value = edge.Apply(value)
	}
	return value, nil
}

func normaliseLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
