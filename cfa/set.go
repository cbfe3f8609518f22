package cfa

// Set is a set of discovered atoms.  A set forked from another one shares the
// contents of its parent and only stores what was added since the fork, so
// seeding a new analyzer from an existing one costs nothing up front.  A set
// must not grow once it has been forked.
type Set[T comparable] struct {
	parent *Set[T]
	own    map[T]struct{}
	size   int
}

func newSet[T comparable]() *Set[T] {
	return &Set[T]{own: make(map[T]struct{})}
}

// fork returns a new set layered on top of s.
func (s *Set[T]) fork() *Set[T] {
	return &Set[T]{parent: s, own: make(map[T]struct{}), size: s.size}
}

// Has returns whether x is in the set.
func (s *Set[T]) Has(x T) bool {
	for l := s; l != nil; l = l.parent {
		if _, ok := l.own[x]; ok {
			return true
		}
	}

	return false
}

// add adds x to the set.  It returns false if x was already present.
func (s *Set[T]) add(x T) bool {
	if s.Has(x) {
		return false
	}

	s.own[x] = struct{}{}
	s.size++
	return true
}

// Len returns the number of elements in the set.
func (s *Set[T]) Len() int {
	return s.size
}

// Each calls fn for every element of the set.  The order is unspecified.
func (s *Set[T]) Each(fn func(T)) {
	for l := s; l != nil; l = l.parent {
		for x := range l.own {
			fn(x)
		}
	}
}

// eachOwn calls fn for every element added since s was forked.
func (s *Set[T]) eachOwn(fn func(T)) {
	for x := range s.own {
		fn(x)
	}
}
