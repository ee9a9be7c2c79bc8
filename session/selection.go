package session

import (
	"slices"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// MaxControlGroups is the number of numbered control groups per house.
const MaxControlGroups = 10

// selection keeps one selection set per house; only the set bound to the
// context house is visible to player-centric calls.
type selection struct {
	context model.HouseID
	sets    [model.MaxPlayers][]model.ObjectRef
	groups  [model.MaxPlayers][MaxControlGroups][]model.ObjectRef
}

func (s *selection) setContext(h model.HouseID) { s.context = h }

func (s *selection) current() []model.ObjectRef {
	if !s.context.Valid() {
		return nil
	}
	return s.sets[s.context]
}

func (s *selection) selected(ref model.ObjectRef) bool {
	return slices.Contains(s.current(), ref)
}

func (s *selection) add(ref model.ObjectRef) bool {
	if !s.context.Valid() || s.selected(ref) {
		return false
	}
	s.sets[s.context] = append(s.sets[s.context], ref)
	return true
}

func (s *selection) clear() {
	if s.context.Valid() {
		s.sets[s.context] = nil
	}
}

func (s *selection) clearAll() {
	s.sets = [model.MaxPlayers][]model.ObjectRef{}
	s.groups = [model.MaxPlayers][MaxControlGroups][]model.ObjectRef{}
}

// forget drops ref from every set and group, e.g. when the object dies.
func (s *selection) forget(ref model.ObjectRef) {
	del := func(r model.ObjectRef) bool { return r == ref }
	for h := range s.sets {
		s.sets[h] = slices.DeleteFunc(s.sets[h], del)
		for g := range s.groups[h] {
			s.groups[h][g] = slices.DeleteFunc(s.groups[h][g], del)
		}
	}
}

func (s *selection) createGroup(n int) {
	s.groups[s.context][n] = slices.Clone(s.current())
}

func (s *selection) addToGroup(n int) {
	group := s.groups[s.context][n]
	for _, ref := range s.current() {
		if !slices.Contains(group, ref) {
			group = append(group, ref)
		}
	}
	s.groups[s.context][n] = group
}

func (s *selection) selectGroup(n int) {
	s.sets[s.context] = slices.Clone(s.groups[s.context][n])
}

func (s *selection) group(n int) []model.ObjectRef {
	return slices.Clone(s.groups[s.context][n])
}
