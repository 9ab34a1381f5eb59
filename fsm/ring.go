package fsm

import "sort"

// orderedRing is a power-of-two ring buffer holding entries sorted by key,
// adapted from the teacher's catrate.ringBuffer: same double/insert/search
// shape, narrowed from a generic constraints.Ordered element to the
// concrete entry type the priority event queue needs (this package has no
// other use for a generic ordered ring, so the type parameter was dropped
// rather than carried across unused).
type orderedRing struct {
	s    []queuedEvent
	r, w uint
}

func newOrderedRing(size int) *orderedRing {
	if size <= 0 || size&(size-1) != 0 {
		panic("fsm: ring: size must be a power of 2")
	}
	return &orderedRing{s: make([]queuedEvent, size)}
}

func (x *orderedRing) mask(val uint) uint {
	return val & (uint(len(x.s)) - 1)
}

func (x *orderedRing) bounds() (i1, l1, l2 int) {
	if x.r == x.w {
		return
	}
	i1 = int(x.mask(x.r))
	l1 = int(x.mask(x.w))
	if l1 <= i1 {
		l2 = l1
		l1 = len(x.s)
	}
	return
}

func (x *orderedRing) Len() int { return int(x.w - x.r) }

func (x *orderedRing) Get(i int) queuedEvent {
	if i < 0 || i >= x.Len() {
		panic("fsm: ring: get: index out of range")
	}
	return x.s[x.mask(x.r+uint(i))]
}

func (x *orderedRing) RemoveBefore(index int) {
	if index < 0 || index > x.Len() {
		panic("fsm: ring: remove before: index out of range")
	}
	x.r += uint(index)
}

// search returns the insertion index that keeps the buffer sorted
// ascending by key (lower key = served first: priority ordering packs
// higher priority into a lower key, see queuedEvent.key).
func (x *orderedRing) search(key int64) int {
	return sort.Search(x.Len(), func(i int) bool {
		return x.Get(i).key >= key
	})
}

// Insert places value at index, growing the backing array if full. Adapted
// directly from catrate.ringBuffer.Insert.
func (x *orderedRing) Insert(index int, value queuedEvent) {
	l := x.Len()
	if index < 0 || index > l {
		panic("fsm: ring: insert: index out of range")
	}

	if l == len(x.s) {
		s := make([]queuedEvent, uint(len(x.s))<<1)
		if len(s) == 0 {
			panic("fsm: ring: insert: overflow")
		}

		i1, l1, l2 := x.bounds()
		l = l1 - i1
		if index < l {
			copy(s, x.s[i1:i1+index])
			s[index] = value
			copy(s[index+1:], x.s[i1+index:l1])
			l++
			copy(s[l:], x.s[:l2])
			l += l2
		} else {
			copy(s, x.s[i1:l1])
			copy(s[l1-i1:], x.s[:index-l])
			s[index] = value
			copy(s[index+1:], x.s[index-l:l2])
			l = l1 - i1 + l2 + 1
		}

		x.s = s
		x.r = 0
		x.w = uint(l)
		return
	}

	var i, j int
	if l == 0 {
		x.r = 0
		x.w = 0
	} else {
		i = int(x.mask(x.r))
		j = int(x.mask(x.w))
	}

	if l == 0 || i < j {
		copy(x.s[i+index+1:], x.s[i+index:j])
		x.s[i+index] = value
		x.w++
		return
	}

	if index >= len(x.s)-i {
		index -= len(x.s) - i
		copy(x.s[index+1:], x.s[index:j])
		x.s[index] = value
		x.w++
		return
	}

	copy(x.s[1:], x.s[:j])
	x.s[0] = x.s[len(x.s)-1]
	copy(x.s[i+index+1:], x.s[i+index:])
	x.s[i+index] = value
	x.w++
}

// PopFront removes and returns the lowest-key entry.
func (x *orderedRing) PopFront() (queuedEvent, bool) {
	if x.Len() == 0 {
		return queuedEvent{}, false
	}
	v := x.Get(0)
	x.RemoveBefore(1)
	return v, true
}
