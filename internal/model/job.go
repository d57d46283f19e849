package model

// JobReference identifies the job currently being watched.
// Generation distinguishes successive adoptions of a reference so that
// work started for an older one can be recognised and discarded.
type JobReference struct {
	ID         string `json:"id"`
	Generation uint64 `json:"generation"`
}

// Tracker is the single slot holding the active JobReference.
//
// It is not safe for concurrent use; the owner confines it to one goroutine.
type Tracker struct {
	current    JobReference
	set        bool
	generation uint64
}

// Adopt stores a new reference for id, bumping the generation counter.
func (t *Tracker) Adopt(id string) JobReference {
	t.generation++
	t.current = JobReference{ID: id, Generation: t.generation}
	t.set = true

	return t.current
}

// Clear empties the slot. The generation counter keeps its value.
func (t *Tracker) Clear() {
	t.current = JobReference{}
	t.set = false
}

// Current returns the active reference, if any.
func (t *Tracker) Current() (JobReference, bool) {
	return t.current, t.set
}

// IsCurrent reports whether ref is the reference held right now.
func (t *Tracker) IsCurrent(ref JobReference) bool {
	return t.set && t.current == ref
}
