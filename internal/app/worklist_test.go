package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"substitute_sms_notifier/internal/domain/assignment"
)

func abcRoster() *Roster {
	return BuildRoster([]assignment.Record{
		rec("A", "555-100-0001", 2, "9A", "Jones"),
		rec("B", "555-100-0002", 1, "9B", "Khan"),
		rec("C", "555-100-0003", 5, "9C", "Lee"),
		rec("A", "", 1, "8A", "Ali"),
	})
}

func TestPrepareWorklist_OnlySelectedInOrder(t *testing.T) {
	r := abcRoster()
	r.SetSelected("C", true)
	r.SetSelected("A", true)

	list := PrepareWorklist(r, seedFromRoster(r))

	require.Len(t, list, 2)
	assert.Equal(t, []string{"A", "C"}, list.Names())
	assert.Equal(t, r.Assignments("A"), list[0].Assignments)
	assert.Equal(t, r.Assignments("C"), list[1].Assignments)
	assert.Equal(t, "555-100-0001", list[0].Phone)
}

func TestPrepareWorklist_PhoneSources(t *testing.T) {
	r := abcRoster()
	r.SelectAll(true)
	phones := NewPhoneRegistry()
	phones.Set("B", "555-999-8888")

	list := PrepareWorklist(r, phones)

	require.Len(t, list, 3)
	assert.Equal(t, "555-100-0001", list[0].Phone, "falls back to first assignment")
	assert.Equal(t, "555-999-8888", list[1].Phone, "registry wins")
}

func TestPrepareWorklist_NothingSelected(t *testing.T) {
	r := abcRoster()
	list := PrepareWorklist(r, seedFromRoster(r))
	assert.Empty(t, list)
	assert.True(t, list.AllPhonesValid())
	assert.Empty(t, list.MissingPhoneTeachers())
}

func TestWorklist_UpdatePhoneTouchesOnlyTarget(t *testing.T) {
	r := abcRoster()
	r.SelectAll(true)
	list := PrepareWorklist(r, seedFromRoster(r))
	before := list.clone()

	ok := list.UpdatePhone("B", "555-777-6666")

	require.True(t, ok)
	assert.Equal(t, "555-777-6666", list[1].Phone)
	assert.Equal(t, before[1].Assignments, list[1].Assignments)
	assert.Equal(t, before[0], list[0])
	assert.Equal(t, before[2], list[2])
	assert.False(t, list.UpdatePhone("Z", "555-777-6666"))
}

func TestWorklist_Validation(t *testing.T) {
	list := Worklist{
		{Name: "A", Phone: "555-123-4567"},
		{Name: "B", Phone: ""},
		{Name: "C", Phone: "+1 (555) 123-4567"},
		{Name: "D", Phone: "abcdef"},
	}

	assert.False(t, list.AllPhonesValid())
	assert.Equal(t, []string{"B", "D"}, list.MissingPhoneTeachers())

	list.UpdatePhone("B", "5551234567")
	list.UpdatePhone("D", "555.123.4567")
	assert.True(t, list.AllPhonesValid())
}
