package car

// floorSet tracks membership of floors 1..n with O(1) add/remove and
// linear directional scans, which is plenty at building scale.
type floorSet struct {
	arr  []bool
	size int
}

func newFloorSet(floors int) *floorSet {
	return &floorSet{arr: make([]bool, floors+1)}
}

func (fs *floorSet) add(floor int) {
	if floor < 1 || floor >= len(fs.arr) || fs.arr[floor] {
		return
	}
	fs.arr[floor] = true
	fs.size++
}

func (fs *floorSet) remove(floor int) {
	if floor < 1 || floor >= len(fs.arr) || !fs.arr[floor] {
		return
	}
	fs.arr[floor] = false
	fs.size--
}

func (fs *floorSet) contains(floor int) bool {
	return floor >= 1 && floor < len(fs.arr) && fs.arr[floor]
}

func (fs *floorSet) empty() bool { return fs.size == 0 }
func (fs *floorSet) len() int    { return fs.size }

// ceiling returns the smallest member >= floor.
func (fs *floorSet) ceiling(floor int) (int, bool) {
	if floor < 1 {
		floor = 1
	}
	for f := floor; f < len(fs.arr); f++ {
		if fs.arr[f] {
			return f, true
		}
	}
	return 0, false
}

// floor returns the largest member <= limit.
func (fs *floorSet) floor(limit int) (int, bool) {
	if limit >= len(fs.arr) {
		limit = len(fs.arr) - 1
	}
	for f := limit; f >= 1; f-- {
		if fs.arr[f] {
			return f, true
		}
	}
	return 0, false
}

// first returns the lowest member.
func (fs *floorSet) first() (int, bool) {
	return fs.ceiling(1)
}

// last returns the highest member.
func (fs *floorSet) last() (int, bool) {
	return fs.floor(len(fs.arr) - 1)
}

func (fs *floorSet) members() []int {
	out := make([]int, 0, fs.size)
	for f := 1; f < len(fs.arr); f++ {
		if fs.arr[f] {
			out = append(out, f)
		}
	}
	return out
}
