package app

import (
	"strings"

	"substitute_sms_notifier/internal/domain/teacher"
)

// PhoneRegistry holds the current phone number of each teacher and where it came from.
// Entries for teachers missing from the roster are kept but never used.
type PhoneRegistry struct {
	entries map[string]teacher.PhoneEntry
}

func NewPhoneRegistry() *PhoneRegistry {
	return &PhoneRegistry{entries: make(map[string]teacher.PhoneEntry)}
}

// seedFromRoster loads each teacher's number from their first assignment.
func seedFromRoster(roster *Roster) *PhoneRegistry {
	p := NewPhoneRegistry()
	for _, name := range roster.order {
		records := roster.assignments[name]
		if len(records) == 0 {
			continue
		}
		if phone := strings.TrimSpace(records[0].SubstitutePhone); phone != "" {
			p.entries[name] = teacher.PhoneEntry{Phone: phone, Source: teacher.PhoneSourceAssignment}
		}
	}
	return p
}

// Phone returns the current number, or "" when none is known.
func (p *PhoneRegistry) Phone(name string) string {
	return p.entries[name].Phone
}

// Source returns where the current number came from.
func (p *PhoneRegistry) Source(name string) teacher.PhoneSource {
	entry, ok := p.entries[name]
	if !ok || entry.Phone == "" {
		return teacher.PhoneSourceMissing
	}
	return entry.Source
}

// Entry returns the full phone entry of a teacher.
func (p *PhoneRegistry) Entry(name string) teacher.PhoneEntry {
	return teacher.PhoneEntry{Phone: p.Phone(name), Source: p.Source(name)}
}

// Set stores a number entered by the user. The value is not validated here.
func (p *PhoneRegistry) Set(name, phone string) {
	p.entries[name] = teacher.PhoneEntry{Phone: phone, Source: teacher.PhoneSourceUserEdited}
}

// ApplySavedOverride fills in a previously saved number for a teacher who has
// no usable number from assignment data. User edits are never replaced.
func (p *PhoneRegistry) ApplySavedOverride(name, phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}
	cur, ok := p.entries[name]
	if ok && cur.Source == teacher.PhoneSourceUserEdited {
		return false
	}
	if ok && cur.Source == teacher.PhoneSourceAssignment && teacher.IsValidPhone(cur.Phone) {
		return false
	}
	p.entries[name] = teacher.PhoneEntry{Phone: phone, Source: teacher.PhoneSourceSavedFile}
	return true
}

// carryUserEdits copies user-edited numbers from prev so that a refresh keeps
// what the operator typed during this session.
func (p *PhoneRegistry) carryUserEdits(prev *PhoneRegistry) {
	if prev == nil {
		return
	}
	for name, entry := range prev.entries {
		if entry.Source == teacher.PhoneSourceUserEdited {
			p.entries[name] = entry
		}
	}
}

// UserEdited returns all numbers typed by the user, keyed by teacher.
func (p *PhoneRegistry) UserEdited() map[string]string {
	out := make(map[string]string)
	for name, entry := range p.entries {
		if entry.Source == teacher.PhoneSourceUserEdited && strings.TrimSpace(entry.Phone) != "" {
			out[name] = entry.Phone
		}
	}
	return out
}
