package teacher

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)
	// countryCode matches an international prefix such as "+1 " or "+92-".
	countryCode = regexp.MustCompile(`^\+[0-9]{1,3}[-\s.]`)
)

// PhoneSource records where a teacher's current phone number came from.
type PhoneSource string

const (
	PhoneSourceAssignment PhoneSource = "auto-loaded-from-assignment"
	PhoneSourceSavedFile  PhoneSource = "auto-loaded-from-saved-file"
	PhoneSourceUserEdited PhoneSource = "user-edited"
	PhoneSourceMissing    PhoneSource = "missing"
)

// PhoneEntry is the current number for a teacher together with its source.
type PhoneEntry struct {
	Phone  string
	Source PhoneSource
}

// IsValidPhone reports whether phone is usable for an SMS.
// Blank and whitespace-only strings are never valid. A number is valid when it
// matches the phone pattern as written, or once a separated country code
// prefix ("+1 (555) 123-4567") is removed.
func IsValidPhone(phone string) bool {
	if strings.TrimSpace(phone) == "" {
		return false
	}
	if phonePattern.MatchString(phone) {
		return true
	}
	if loc := countryCode.FindStringIndex(phone); loc != nil {
		return phonePattern.MatchString(phone[loc[1]:])
	}
	return false
}
