package usecase

import (
	"maps"
	"slices"
)

// IDSet is a set of entity ids, one side of the asset/group association.
type IDSet map[uint]struct{}

func NewIDSet(ids ...uint) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id uint) {
	s[id] = struct{}{}
}

func (s IDSet) Remove(id uint) {
	delete(s, id)
}

func (s IDSet) Len() int {
	return len(s)
}

// Slice returns the ids in ascending order.
func (s IDSet) Slice() []uint {
	return slices.Sorted(maps.Keys(s))
}

func (s IDSet) Clone() IDSet {
	if s == nil {
		return NewIDSet()
	}
	return maps.Clone(s)
}

// link and unlink are the only places where the two sides of the
// association change, always together.

func link(g *Group, a *Asset) {
	if g.AssetIDs == nil {
		g.AssetIDs = NewIDSet()
	}
	if a.GroupIDs == nil {
		a.GroupIDs = NewIDSet()
	}
	g.AssetIDs.Add(a.ID)
	a.GroupIDs.Add(g.ID)
}

func unlink(g *Group, a *Asset) {
	g.AssetIDs.Remove(a.ID)
	a.GroupIDs.Remove(g.ID)
}

// isMember checks the owning side.
func isMember(g Group, a Asset) bool {
	return g.AssetIDs.Has(a.ID)
}
