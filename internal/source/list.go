package source

import "slices"

// slotList is an ordered set that may be mutated while it is being walked.
// Removals during a walk leave a zero-value tombstone so the indices of
// running walks stay valid; tombstones are compacted once the last walk
// returns. Items appended during a walk are visited by that walk.
type slotList[T comparable] struct {
	items   []T
	live    int
	walking int
	holes   bool
}

func (l *slotList[T]) indexOf(v T) int {
	for i, it := range l.items {
		if it == v {
			return i
		}
	}
	return -1
}

func (l *slotList[T]) contains(v T) bool {
	return l.indexOf(v) >= 0
}

// add appends v. It reports false if v is already present.
func (l *slotList[T]) add(v T) bool {
	if l.contains(v) {
		return false
	}
	l.items = append(l.items, v)
	l.live++
	return true
}

// remove drops v. It reports false if v is not present.
func (l *slotList[T]) remove(v T) bool {
	i := l.indexOf(v)
	if i < 0 {
		return false
	}
	if l.walking > 0 {
		var zero T
		l.items[i] = zero
		l.holes = true
	} else {
		l.items = slices.Delete(l.items, i, i+1)
	}
	l.live--
	return true
}

func (l *slotList[T]) len() int { return l.live }

// each calls fn for every live item in order until fn returns false. The
// length is re-read on every step.
func (l *slotList[T]) each(fn func(T) bool) {
	var zero T
	l.walking++
	defer func() {
		l.walking--
		if l.walking == 0 && l.holes {
			l.compact()
		}
	}()
	for i := 0; i < len(l.items); i++ {
		v := l.items[i]
		if v == zero {
			continue
		}
		if !fn(v) {
			return
		}
	}
}

func (l *slotList[T]) compact() {
	var zero T
	l.items = slices.DeleteFunc(l.items, func(v T) bool { return v == zero })
	l.holes = false
}
