package app

import (
	"substitute_sms_notifier/internal/domain/assignment"
	"substitute_sms_notifier/internal/domain/teacher"
)

// WorklistEntry is one recipient of a campaign.
type WorklistEntry struct {
	Name        string
	Phone       string
	Assignments []assignment.Record
}

// Worklist is the ordered list of recipients for the next campaign.
type Worklist []WorklistEntry

// PrepareWorklist builds entries for the selected teachers, in roster order.
// Teachers without assignments are skipped. The phone comes from the registry,
// or from the first assignment when the registry has nothing for the teacher.
func PrepareWorklist(roster *Roster, phones *PhoneRegistry) Worklist {
	list := make(Worklist, 0)
	for _, name := range roster.Selected() {
		records := roster.Assignments(name)
		if len(records) == 0 {
			continue
		}
		phone := phones.Phone(name)
		if phone == "" {
			phone = records[0].SubstitutePhone
		}
		list = append(list, WorklistEntry{Name: name, Phone: phone, Assignments: records})
	}
	return list
}

// UpdatePhone replaces the phone of the named entry in place.
// It reports false when no entry has that name.
func (w Worklist) UpdatePhone(name, phone string) bool {
	for i := range w {
		if w[i].Name == name {
			w[i].Phone = phone
			return true
		}
	}
	return false
}

// AllPhonesValid is true when every entry has a valid phone. An empty worklist is valid.
func (w Worklist) AllPhonesValid() bool {
	for _, e := range w {
		if !teacher.IsValidPhone(e.Phone) {
			return false
		}
	}
	return true
}

// MissingPhoneTeachers lists entries whose phone is invalid, in worklist order.
func (w Worklist) MissingPhoneTeachers() []string {
	var names []string
	for _, e := range w {
		if !teacher.IsValidPhone(e.Phone) {
			names = append(names, e.Name)
		}
	}
	return names
}

// Names returns the teacher names in worklist order.
func (w Worklist) Names() []string {
	names := make([]string, len(w))
	for i, e := range w {
		names[i] = e.Name
	}
	return names
}

func (w Worklist) clone() Worklist {
	if w == nil {
		return nil
	}
	out := make(Worklist, len(w))
	copy(out, w)
	return out
}
