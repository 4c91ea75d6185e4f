package app

import (
	"strings"

	"substitute_sms_notifier/internal/domain/assignment"
	"substitute_sms_notifier/internal/domain/teacher"
)

// Roster groups assignment records by substitute teacher and tracks which
// teachers are selected for the next SMS campaign.
// Teachers keep the order in which they were first seen in the records.
type Roster struct {
	order       []string                       // display names, discovery order
	keys        map[string]string              // normalized name -> display name
	assignments map[string][]assignment.Record // display name -> records in load order
	selected    map[string]bool                // display name -> selected
}

// BuildRoster aggregates records into a new roster with every teacher unselected.
// Records are grouped by teacher.NormalizeName of the substitute; the display
// name kept is the first raw spelling encountered. Records without a
// substitute are ignored.
func BuildRoster(records []assignment.Record) *Roster {
	r := &Roster{
		keys:        make(map[string]string),
		assignments: make(map[string][]assignment.Record),
		selected:    make(map[string]bool),
	}
	for _, rec := range records {
		key := teacher.NormalizeName(rec.Substitute)
		if key == "" {
			continue
		}
		display, ok := r.keys[key]
		if !ok {
			display = strings.TrimSpace(rec.Substitute)
			r.keys[key] = display
			r.order = append(r.order, display)
			r.selected[display] = false
		}
		r.assignments[display] = append(r.assignments[display], rec)
	}
	return r
}

// Teachers returns display names in discovery order.
func (r *Roster) Teachers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of teachers.
func (r *Roster) Len() int { return len(r.order) }

// Resolve maps any spelling of a teacher name to its display name.
func (r *Roster) Resolve(name string) (string, bool) {
	if _, ok := r.assignments[name]; ok {
		return name, true
	}
	display, ok := r.keys[teacher.NormalizeName(name)]
	return display, ok
}

// Assignments returns a copy of the teacher's records in load order.
func (r *Roster) Assignments(name string) []assignment.Record {
	records := r.assignments[name]
	if len(records) == 0 {
		return nil
	}
	out := make([]assignment.Record, len(records))
	copy(out, records)
	return out
}

// IsSelected reports the selection flag of a teacher.
func (r *Roster) IsSelected(name string) bool { return r.selected[name] }

// SetSelected changes the selection flag. Unknown teachers are ignored.
func (r *Roster) SetSelected(name string, selected bool) bool {
	if _, ok := r.selected[name]; !ok {
		return false
	}
	r.selected[name] = selected
	return true
}

// Toggle flips the selection flag and returns the new value.
func (r *Roster) Toggle(name string) (bool, bool) {
	cur, ok := r.selected[name]
	if !ok {
		return false, false
	}
	r.selected[name] = !cur
	return !cur, true
}

// SelectAll sets every teacher's flag to selected.
func (r *Roster) SelectAll(selected bool) {
	for name := range r.selected {
		r.selected[name] = selected
	}
}

// Selected returns the selected display names in discovery order.
func (r *Roster) Selected() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.selected[name] {
			out = append(out, name)
		}
	}
	return out
}
