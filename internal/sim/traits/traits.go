package traits

import (
	"sort"
	"strings"
)

type Trait string

const (
	Smart   Trait = "SMART"
	Deft    Trait = "DEFT"
	Clumsy  Trait = "CLUMSY"
	Fighter Trait = "FIGHTER"
	Hauler  Trait = "HAULER"
	Breaker Trait = "BREAKER"
	Scout   Trait = "SCOUT"
	Light   Trait = "LIGHT"
	Heavy   Trait = "HEAVY"
	Flyer   Trait = "FLYER"
	Frail   Trait = "FRAIL"
)

// Set is an explicit set of traits. The empty set means "no constraint" when used
// as a requirement and "nothing forbidden" when used as a prohibition.
type Set map[Trait]struct{}

func Of(ts ...Trait) Set {
	s := make(Set, len(ts))
	for _, t := range ts {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

func Parse(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n != "" {
			s[Trait(n)] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(t Trait) bool {
	_, ok := s[t]
	return ok
}

// ContainsAll reports whether every trait in req is present in s.
func (s Set) ContainsAll(req Set) bool {
	for t := range req {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether s holds at least one trait from other.
func (s Set) ContainsAny(other Set) bool {
	for t := range other {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Satisfies is the capability gate used by worker matching.
func (s Set) Satisfies(required, forbidden Set) bool {
	return s.ContainsAll(required) && !s.ContainsAny(forbidden)
}

func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
