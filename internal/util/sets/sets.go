// Package sets provides a minimal generic hash set used for membership
// checks and deduplication.
package sets

// Set holds comparable keys with struct{} values.
type Set[T comparable] map[T]struct{}

// New builds a set from the given values.
func New[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v.
func (s Set[T]) Add(v T) { s[v] = struct{}{} }

// Has reports whether v is a member.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}
