package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"substitute_sms_notifier/internal/domain/assignment"
)

func TestBuildRoster_GroupsByNormalizedName(t *testing.T) {
	records := []assignment.Record{
		rec("Mr. Smith", "555-123-4567", 3, "9A", "Jones"),
		rec("Ms Brown", "", 1, "10B", "Khan"),
		rec("smith", "", 1, "7C", "Lee"),
		rec("  MR   SMITH ", "", 2, "8D", "Ali"),
		rec("   ", "", 4, "11A", "Nobody"),
	}

	r := BuildRoster(records)

	require.Equal(t, []string{"Mr. Smith", "Ms Brown"}, r.Teachers())
	got := r.Assignments("Mr. Smith")
	require.Len(t, got, 3)
	assert.Equal(t, "9A", got[0].ClassName)
	assert.Equal(t, "7C", got[1].ClassName)
	assert.Equal(t, "8D", got[2].ClassName)

	for _, name := range r.Teachers() {
		assert.False(t, r.IsSelected(name), name)
	}
}

func TestRoster_Selection(t *testing.T) {
	r := BuildRoster([]assignment.Record{
		rec("A", "", 1, "1", "x"),
		rec("B", "", 1, "1", "x"),
		rec("C", "", 1, "1", "x"),
	})

	assert.True(t, r.SetSelected("C", true))
	assert.True(t, r.SetSelected("A", true))
	assert.False(t, r.SetSelected("Z", true))
	assert.Equal(t, []string{"A", "C"}, r.Selected())

	selected, ok := r.Toggle("A")
	require.True(t, ok)
	assert.False(t, selected)
	_, ok = r.Toggle("Z")
	assert.False(t, ok)

	r.SelectAll(true)
	assert.Equal(t, []string{"A", "B", "C"}, r.Selected())
	r.SelectAll(false)
	assert.Empty(t, r.Selected())
}

func TestRoster_ResolveAndCopies(t *testing.T) {
	r := BuildRoster([]assignment.Record{rec("Mrs. Patel", "", 2, "6A", "Ng")})

	name, ok := r.Resolve("mrs patel")
	require.True(t, ok)
	assert.Equal(t, "Mrs. Patel", name)

	_, ok = r.Resolve("Patil")
	assert.False(t, ok)

	got := r.Assignments(name)
	got[0].ClassName = "changed"
	assert.Equal(t, "6A", r.Assignments(name)[0].ClassName)
	assert.Nil(t, r.Assignments("nobody"))
}
