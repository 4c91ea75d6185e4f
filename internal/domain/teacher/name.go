package teacher

import (
	"regexp"
	"strings"
)

// honorificPrefix matches a leading title such as "Mr " or "Mrs. ".
// Longer alternatives come first so "mrs" is not consumed as "mr".
var honorificPrefix = regexp.MustCompile(`^(sir|miss|mrs|mr|ms)\.?\s+`)

// NormalizeName builds the grouping key for a teacher name:
//   - converts to lowercase
//   - strips leading honorifics (sir, miss, mrs, mr, ms)
//   - compresses whitespace runs into one space
//   - trims
//
// Two names with the same key refer to the same teacher.
func NormalizeName(name string) string {
	key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	for {
		stripped := honorificPrefix.ReplaceAllString(key, "")
		if stripped == key {
			return key
		}
		key = strings.TrimSpace(stripped)
	}
}
