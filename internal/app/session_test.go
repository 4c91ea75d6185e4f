package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"substitute_sms_notifier/internal/domain/assignment"
	"substitute_sms_notifier/internal/domain/sms"
	"substitute_sms_notifier/internal/domain/teacher"
)

type sessionFixture struct {
	session     *Session
	assignments *stubAssignments
	contacts    *stubContacts
	history     *stubHistory
	sender      *stubSender
	gate        *stubGate
	tasks       *syncTasks
}

func newSessionFixture(t *testing.T, records ...assignment.Record) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		assignments: &stubAssignments{records: records},
		contacts:    &stubContacts{},
		history:     &stubHistory{},
		sender:      &stubSender{failFor: map[string]bool{}},
		gate:        &stubGate{granted: true, answer: true},
		tasks:       &syncTasks{},
	}
	f.session = NewSession(SessionDeps{
		Assignments: f.assignments,
		Contacts:    f.contacts,
		History:     f.history,
		Dispatcher:  NewDispatcher(f.sender, f.gate, nil, WithClock(fixedClock), WithIDGenerator(sequentialIDs())),
		Gate:        f.gate,
		Tasks:       f.tasks,
		Clock:       fixedClock,
	})
	return f
}

func defaultRecords() []assignment.Record {
	return []assignment.Record{
		rec("Mr. Adams", "555-100-0001", 2, "9A", "Jones"),
		rec("Ms Baker", "", 1, "9B", "Khan"),
		rec("Carter", "555-100-0003", 5, "9C", "Lee"),
		rec("adams", "", 1, "8A", "Ali"),
	}
}

func dispatchAndWait(t *testing.T, s *Session) CampaignResult {
	t.Helper()
	done := make(chan CampaignResult, 1)
	require.NoError(t, s.Dispatch(context.Background(), func(r CampaignResult) { done <- r }))
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("campaign did not complete")
		return CampaignResult{}
	}
}

func TestSession_RefreshBuildsTeacherList(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	f.contacts.phones = map[string]string{"ms baker": "555-200-0002"}

	require.NoError(t, f.session.Refresh(context.Background()))

	views := f.session.Teachers()
	require.Len(t, views, 3)
	assert.Equal(t, "Mr. Adams", views[0].Name)
	assert.Len(t, views[0].Assignments, 2)
	assert.Equal(t, "2 assignments: P1, P2", views[0].Summary)
	assert.Equal(t, teacher.PhoneSourceAssignment, views[0].PhoneSource)
	assert.Equal(t, "555-200-0002", views[1].Phone)
	assert.Equal(t, teacher.PhoneSourceSavedFile, views[1].PhoneSource)
	assert.True(t, views[1].PhoneValid)
	for _, v := range views {
		assert.False(t, v.Selected)
	}
	assert.False(t, f.session.Status().Loading)
}

func TestSession_RefreshFailureKeepsLastGoodState(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	require.NoError(t, f.session.Refresh(context.Background()))

	f.assignments.err = errors.New("disk gone")
	err := f.session.Refresh(context.Background())

	require.Error(t, err)
	assert.Len(t, f.session.Teachers(), 3)
	assert.Contains(t, f.session.Status().ErrorMessage, "disk gone")

	f.session.ClearError()
	assert.Empty(t, f.session.Status().ErrorMessage)
}

func TestSession_ConcurrentRefreshSharesLoad(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	f.assignments.block = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.session.Refresh(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.assignments.block)
	wg.Wait()

	assert.Less(t, f.assignments.calls, 5)
	assert.Len(t, f.session.Teachers(), 3)
}

func TestSession_RefreshReseedsSelection(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	ctx := context.Background()
	require.NoError(t, f.session.Refresh(ctx))
	_, err := f.session.SetSelected("carter", true)
	require.NoError(t, err)
	_, err = f.session.UpdatePhone("Ms Baker", "555-300-0003")
	require.NoError(t, err)

	require.NoError(t, f.session.Refresh(ctx))

	views := f.session.Teachers()
	for _, v := range views {
		assert.False(t, v.Selected, v.Name)
	}
	assert.Equal(t, "555-300-0003", views[1].Phone)
	assert.Equal(t, teacher.PhoneSourceSavedFile, views[1].PhoneSource)
}

func TestSession_RefreshPreservingSelection(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	ctx := context.Background()
	require.NoError(t, f.session.Refresh(ctx))
	_, err := f.session.SetSelected("carter", true)
	require.NoError(t, err)
	_, err = f.session.UpdatePhone("Ms Baker", "555-300-0003")
	require.NoError(t, err)

	require.NoError(t, f.session.RefreshPreservingSelection(ctx))

	views := f.session.Teachers()
	assert.Equal(t, "555-300-0003", views[1].Phone)
	assert.Equal(t, teacher.PhoneSourceUserEdited, views[1].PhoneSource)
	assert.True(t, views[2].Selected)
	assert.False(t, views[0].Selected)
}

func TestSession_SelectionRoundTrip(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	ctx := context.Background()
	require.NoError(t, f.session.Refresh(ctx))
	_, err := f.session.SetSelected("Mr. Adams", true)
	require.NoError(t, err)
	_, err = f.session.SetSelected("Carter", true)
	require.NoError(t, err)
	f.session.PrepareWorklist()

	restarted := newSessionFixture(t, defaultRecords()...)
	restarted.contacts = f.contacts
	restarted.session.deps.Contacts = f.contacts
	require.NoError(t, restarted.session.Refresh(ctx))
	n, err := restarted.session.RestoreSelection(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	var selected []string
	for _, v := range restarted.session.Teachers() {
		if v.Selected {
			selected = append(selected, v.Name)
		}
	}
	assert.ElementsMatch(t, []string{"Mr. Adams", "Carter"}, selected)
}

func TestSession_UnknownTeacher(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	require.NoError(t, f.session.Refresh(context.Background()))

	_, err := f.session.SetSelected("Nobody", true)
	assert.ErrorIs(t, err, ErrUnknownTeacher)
	_, _, err = f.session.ToggleSelected("Nobody")
	assert.ErrorIs(t, err, ErrUnknownTeacher)
	_, err = f.session.UpdatePhone("Nobody", "555-123-4567")
	assert.ErrorIs(t, err, ErrUnknownTeacher)
	_, err = f.session.Preview("Nobody")
	assert.ErrorIs(t, err, ErrUnknownTeacher)
}

func TestSession_UpdatePhoneWritesThrough(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	require.NoError(t, f.session.Refresh(context.Background()))
	f.session.SelectAll(true)
	list := f.session.PrepareWorklist()
	require.Equal(t, []string{"Ms Baker"}, list.MissingPhoneTeachers())

	name, err := f.session.UpdatePhone("baker", "555-222-0000")

	require.NoError(t, err)
	assert.Equal(t, "Ms Baker", name)
	assert.True(t, f.session.Worklist().AllPhonesValid())
	assert.Equal(t, "555-100-0001", f.session.Worklist()[0].Phone)
	assert.Equal(t, map[string]string{"Ms Baker": "555-222-0000"}, f.contacts.phones)
}

func TestSession_DispatchRecordsHistory(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	ctx := context.Background()
	require.NoError(t, f.session.Refresh(ctx))
	f.session.SelectAll(true)
	f.session.PrepareWorklist()
	f.sender.failFor[""] = true

	var events []EventKind
	var mu sync.Mutex
	f.session.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e.Kind)
		mu.Unlock()
	})

	result := dispatchAndWait(t, f.session)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	history := f.session.History()
	require.Len(t, history, 3)
	assert.Equal(t, sms.StatusFailed, history[1].Status)
	assert.Len(t, f.history.msgs, 3)
	assert.False(t, f.session.Status().InProgress)

	last, ok := f.session.LastResult()
	require.True(t, ok)
	assert.Equal(t, result.Sent, last.Sent)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, EventMessageRecorded)
	assert.Contains(t, events, EventCampaignComplete)
}

func TestSession_DispatchPreconditions(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	ctx := context.Background()
	require.NoError(t, f.session.Refresh(ctx))

	err := f.session.Dispatch(ctx, nil)
	assert.ErrorIs(t, err, ErrNoTeachersSelected)
	assert.Equal(t, ErrNoTeachersSelected.Error(), f.session.Status().ErrorMessage)
	assert.False(t, f.session.Status().NeedsPermission)

	f.session.SelectAll(true)
	f.session.PrepareWorklist()
	f.gate.granted = false
	err = f.session.Dispatch(ctx, nil)
	assert.ErrorIs(t, err, ErrPermissionRequired)
	st := f.session.Status()
	assert.True(t, st.NeedsPermission)
	assert.False(t, st.InProgress)
	assert.Empty(t, f.sender.Calls())

	require.NoError(t, f.session.RequestPermission(ctx))
	assert.False(t, f.session.Status().NeedsPermission)
	result := dispatchAndWait(t, f.session)
	assert.Equal(t, 3, result.Sent+result.Failed)
}

func TestSession_WaitBlocksUntilCampaignFinishes(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	f.session.deps.Dispatcher = NewDispatcher(f.sender, f.gate, nil,
		WithClock(fixedClock),
		WithIDGenerator(sequentialIDs()),
		WithSendInterval(30*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.session.Refresh(ctx))
	f.session.SelectAll(true)
	f.session.PrepareWorklist()

	done := make(chan CampaignResult, 1)
	require.NoError(t, f.session.Dispatch(ctx, func(r CampaignResult) { done <- r }))
	cancel()
	f.session.Wait()

	select {
	case r := <-done:
		assert.Equal(t, 3, r.Sent)
	default:
		t.Fatal("completion callback did not run before Wait returned")
	}
	assert.Len(t, f.sender.Calls(), 3)
	persisted, err := f.history.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
	assert.False(t, f.session.Status().InProgress)
}

func TestSession_CampaignStateTransitions(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	ctx := context.Background()
	require.NoError(t, f.session.Refresh(ctx))
	assert.Equal(t, StateIdle, f.session.Status().Campaign)

	var mu sync.Mutex
	var states []CampaignState
	f.session.Subscribe(func(e Event) {
		if e.Kind != EventStatusChanged {
			return
		}
		st := f.session.Status()
		mu.Lock()
		states = append(states, st.Campaign)
		mu.Unlock()
	})
	observed := func() []CampaignState {
		mu.Lock()
		defer mu.Unlock()
		out := append([]CampaignState(nil), states...)
		states = nil
		return out
	}

	require.ErrorIs(t, f.session.Dispatch(ctx, nil), ErrNoTeachersSelected)
	assert.Equal(t, []CampaignState{StatePermissionCheck, StateIdle}, observed())

	f.session.SelectAll(true)
	f.session.PrepareWorklist()
	f.gate.granted = false
	f.gate.answer = false
	require.ErrorIs(t, f.session.Dispatch(ctx, nil), ErrPermissionRequired)
	assert.Equal(t, []CampaignState{StatePermissionCheck, StateBlocked}, observed())

	f.gate.granted = true
	require.NoError(t, f.session.Dispatch(ctx, nil))
	f.session.Wait()
	assert.Equal(t, []CampaignState{StatePermissionCheck, StateSending, StateComplete}, observed())
	assert.Equal(t, StateComplete, f.session.Status().Campaign)
}

func TestSession_LoadHistoryOnce(t *testing.T) {
	f := newSessionFixture(t)
	f.history.msgs = []*sms.SentMessage{
		{ID: "a", TeacherName: "X", Status: sms.StatusSent},
		{ID: "b", TeacherName: "Y", Status: sms.StatusFailed},
		{ID: "a", TeacherName: "X", Status: sms.StatusSent},
	}

	require.NoError(t, f.session.LoadHistory(context.Background()))
	require.NoError(t, f.session.LoadHistory(context.Background()))

	assert.Len(t, f.session.History(), 2)
	recent := f.session.RecentHistory(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].ID)
}

func TestSession_PreviewAndTemplate(t *testing.T) {
	f := newSessionFixture(t, defaultRecords()...)
	require.NoError(t, f.session.Refresh(context.Background()))
	f.session.SetTemplate("{substitute}: {class} on {date} ({day})")

	got, err := f.session.Preview("adams")

	require.NoError(t, err)
	assert.Equal(t, "Mr. Adams: 9A on 2024-03-04 (Monday)", got)
	assert.Equal(t, "{substitute}: {class} on {date} ({day})", f.session.Template())
}
