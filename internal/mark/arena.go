package mark

// An ID packs an arena slot index (low 32 bits) with the slot generation
// (high 32 bits). Generations start at 1, so the zero ID is never issued.

func makeID(index, gen uint32) ID {
	return ID(uint64(gen)<<32 | uint64(index))
}

func (id ID) index() uint32 {
	return uint32(id)
}

func (id ID) generation() uint32 {
	return uint32(id >> 32)
}

// slot holds one arena entry.
type slot struct {
	gen  uint32
	live bool
	rec  record
}

// arena stores mark records addressed by generation-checked ids.
// Freed slots are reused with a bumped generation so stale ids miss.
type arena struct {
	slots []slot
	free  []uint32
	live  int
}

// alloc reserves a slot and returns its id and record.
func (a *arena) alloc() (ID, *record) {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}

	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		// Generation wrapped; skip zero so the id stays non-zero.
		s.gen = 1
	}
	s.live = true
	id := makeID(idx, s.gen)
	s.rec = record{id: id}
	a.live++
	return id, &s.rec
}

// get returns the live record for id.
func (a *arena) get(id ID) (*record, bool) {
	idx := id.index()
	if int(idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if !s.live || s.gen != id.generation() {
		return nil, false
	}
	return &s.rec, true
}

// release frees the slot for id. Returns false if id was not live.
func (a *arena) release(id ID) bool {
	idx := id.index()
	if int(idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[idx]
	if !s.live || s.gen != id.generation() {
		return false
	}
	s.live = false
	s.rec = record{}
	a.free = append(a.free, idx)
	a.live--
	return true
}

// len returns the number of live records.
func (a *arena) len() int {
	return a.live
}
