package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"substitute_sms_notifier/internal/domain/assignment"
	"substitute_sms_notifier/internal/domain/sms"
	"substitute_sms_notifier/internal/domain/teacher"
)

// TaskSubmitter runs background work whose failure must not affect the caller.
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error)
}

// EventKind names a change observers are told about.
type EventKind string

const (
	EventRefreshed         EventKind = "refreshed"
	EventStatusChanged     EventKind = "status_changed"
	EventSelectionChanged  EventKind = "selection_changed"
	EventWorklistPrepared  EventKind = "worklist_prepared"
	EventPhoneUpdated      EventKind = "phone_updated"
	EventMessageRecorded   EventKind = "message_recorded"
	EventCampaignComplete  EventKind = "campaign_complete"
	EventPermissionChanged EventKind = "permission_changed"
)

// Event is delivered to observers after the state has changed.
type Event struct {
	Kind    EventKind
	Teacher string
	Message *sms.SentMessage
	Result  *CampaignResult
}

// Status is the observable flag set of a session.
type Status struct {
	Loading         bool
	InProgress      bool
	NeedsPermission bool
	ErrorMessage    string
	Campaign        CampaignState
}

// TeacherView is a read-only row of the teacher list.
type TeacherView struct {
	Name        string
	Selected    bool
	Phone       string
	PhoneSource teacher.PhoneSource
	PhoneValid  bool
	Summary     string
	Assignments []assignment.Record
}

// SessionDeps are the collaborators of a Session.
type SessionDeps struct {
	Assignments assignment.Repository
	Contacts    teacher.ContactRepository
	History     sms.HistoryRepository
	Dispatcher  *Dispatcher
	Gate        sms.PermissionGate
	Tasks       TaskSubmitter
	Metrics     Metrics
	Clock       func() time.Time
	Logger      *logrus.Entry
}

// Session owns the teacher list, phone numbers, worklist, template and
// message history. All methods are safe for concurrent use; observers are
// called without the lock held.
type Session struct {
	deps SessionDeps
	log  *logrus.Entry

	refreshGroup singleflight.Group
	refreshMu    sync.Mutex

	mu            sync.Mutex
	roster        *Roster
	phones        *PhoneRegistry
	worklist      Worklist
	composer      *Composer
	history       *HistoryLog
	historyLoaded bool
	status        Status
	lastResult    *CampaignResult
	observers     []func(Event)

	campaigns sync.WaitGroup
}

func NewSession(deps SessionDeps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	return &Session{
		deps:     deps,
		log:      deps.Logger.WithField("component", "session"),
		roster:   BuildRoster(nil),
		phones:   NewPhoneRegistry(),
		composer: NewComposer(deps.Clock),
		history:  NewHistoryLog(),
		status:   Status{Campaign: StateIdle},
	}
}

// Subscribe registers fn for every future event.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	observers := make([]func(Event), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ClearError resets the error message.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.status.ErrorMessage = ""
	s.mu.Unlock()
	s.emit(Event{Kind: EventStatusChanged})
}

// Refresh reloads assignments and rebuilds the teacher list from scratch:
// every teacher starts unselected and phone numbers are seeded again from
// the assignments and the saved file. Concurrent calls share one load. Until
// the load succeeds the previous state stays visible.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, s.refresh(ctx, false)
	})
	return err
}

// RefreshPreservingSelection reloads assignments like Refresh but keeps the
// selection and the numbers typed by the operator for teachers still present.
// Used by the periodic background refresh.
func (s *Session) RefreshPreservingSelection(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do("refresh_preserving", func() (interface{}, error) {
		return nil, s.refresh(ctx, true)
	})
	return err
}

func (s *Session) refresh(ctx context.Context, preserve bool) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := s.deps.Clock()
	s.mu.Lock()
	s.status.Loading = true
	s.mu.Unlock()
	s.emit(Event{Kind: EventStatusChanged})

	records, err := s.deps.Assignments.LoadAssignments(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load assignments: %w", err)
		s.log.WithError(err).Error("Refresh failed")
		s.deps.Metrics.RefreshFinished(s.deps.Clock().Sub(started), err)
		s.mu.Lock()
		s.status.Loading = false
		s.status.ErrorMessage = err.Error()
		s.mu.Unlock()
		s.emit(Event{Kind: EventStatusChanged})
		return err
	}

	roster := BuildRoster(records)
	phones := seedFromRoster(roster)

	var overrides map[string]string
	if s.deps.Contacts != nil {
		overrides, err = s.deps.Contacts.LoadPhoneOverrides(ctx)
		if err != nil {
			s.log.WithError(err).Warn("Could not load saved phone numbers")
		}
	}

	s.mu.Lock()
	if preserve {
		for _, name := range s.roster.Selected() {
			if display, ok := roster.Resolve(name); ok {
				roster.SetSelected(display, true)
			}
		}
		phones.carryUserEdits(s.phones)
	}
	for name, phone := range overrides {
		if display, ok := roster.Resolve(name); ok {
			phones.ApplySavedOverride(display, phone)
		}
	}
	s.roster = roster
	s.phones = phones
	s.status.Loading = false
	s.status.ErrorMessage = ""
	s.mu.Unlock()

	s.deps.Metrics.RefreshFinished(s.deps.Clock().Sub(started), nil)
	s.log.WithFields(logrus.Fields{
		"records":  len(records),
		"teachers": roster.Len(),
	}).Info("Assignments refreshed")
	s.emit(Event{Kind: EventRefreshed})
	return nil
}

// Teachers lists every known teacher in discovery order.
func (s *Session) Teachers() []TeacherView {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.roster.Teachers()
	views := make([]TeacherView, 0, len(names))
	for _, name := range names {
		records := s.roster.Assignments(name)
		entry := s.phones.Entry(name)
		views = append(views, TeacherView{
			Name:        name,
			Selected:    s.roster.IsSelected(name),
			Phone:       entry.Phone,
			PhoneSource: entry.Source,
			PhoneValid:  teacher.IsValidPhone(entry.Phone),
			Summary:     Summarize(records),
			Assignments: records,
		})
	}
	return views
}

// SetSelected changes the selection flag of name, matched by normalized name.
func (s *Session) SetSelected(name string, selected bool) (string, error) {
	s.mu.Lock()
	display, ok := s.roster.Resolve(name)
	if ok {
		s.roster.SetSelected(display, selected)
	}
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTeacher, name)
	}
	s.emit(Event{Kind: EventSelectionChanged, Teacher: display})
	return display, nil
}

// ToggleSelected flips the selection flag of name and returns the new value.
func (s *Session) ToggleSelected(name string) (string, bool, error) {
	s.mu.Lock()
	display, ok := s.roster.Resolve(name)
	var selected bool
	if ok {
		selected, _ = s.roster.Toggle(display)
	}
	s.mu.Unlock()
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownTeacher, name)
	}
	s.emit(Event{Kind: EventSelectionChanged, Teacher: display})
	return display, selected, nil
}

func (s *Session) SelectAll(selected bool) {
	s.mu.Lock()
	s.roster.SelectAll(selected)
	s.mu.Unlock()
	s.emit(Event{Kind: EventSelectionChanged})
}

// RestoreSelection selects the teachers saved by the last PrepareWorklist.
// Names no longer present are ignored. It returns how many were selected.
func (s *Session) RestoreSelection(ctx context.Context) (int, error) {
	if s.deps.Contacts == nil {
		return 0, nil
	}
	names, err := s.deps.Contacts.LoadSelection(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load saved selection: %w", err)
	}
	restored := 0
	s.mu.Lock()
	for _, name := range names {
		if display, ok := s.roster.Resolve(name); ok {
			s.roster.SetSelected(display, true)
			restored++
		}
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventSelectionChanged})
	return restored, nil
}

// PrepareWorklist builds the worklist from the current selection and saves
// the selected names in the background.
func (s *Session) PrepareWorklist() Worklist {
	s.mu.Lock()
	list := PrepareWorklist(s.roster, s.phones)
	s.worklist = list
	out := list.clone()
	s.mu.Unlock()

	names := out.Names()
	s.submit("save_selection", func(ctx context.Context) error {
		return s.deps.Contacts.SaveSelection(ctx, names)
	}, s.deps.Contacts != nil)
	s.emit(Event{Kind: EventWorklistPrepared})
	return out
}

func (s *Session) Worklist() Worklist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worklist.clone()
}

// UpdatePhone stores a number typed by the operator. The prepared worklist
// and the registry are updated together; the number is saved in the background.
func (s *Session) UpdatePhone(name, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	s.mu.Lock()
	display, ok := s.roster.Resolve(name)
	if !ok {
		display, ok = name, s.worklist.UpdatePhone(name, phone)
		if ok {
			s.phones.Set(display, phone)
		}
	} else {
		s.phones.Set(display, phone)
		s.worklist.UpdatePhone(display, phone)
	}
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTeacher, name)
	}

	s.submit("save_phone", func(ctx context.Context) error {
		saved, err := s.deps.Contacts.LoadPhoneOverrides(ctx)
		if err != nil {
			return err
		}
		if saved == nil {
			saved = make(map[string]string)
		}
		saved[display] = phone
		return s.deps.Contacts.SavePhoneOverrides(ctx, saved)
	}, s.deps.Contacts != nil)
	s.emit(Event{Kind: EventPhoneUpdated, Teacher: display})
	return display, nil
}

func (s *Session) Template() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer.Template()
}

func (s *Session) SetTemplate(tmpl string) {
	s.mu.Lock()
	s.composer.SetTemplate(tmpl)
	s.mu.Unlock()
}

// Preview renders the template for the first assignment of name.
func (s *Session) Preview(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	display, ok := s.roster.Resolve(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTeacher, name)
	}
	records := s.roster.Assignments(display)
	if len(records) == 0 {
		return "", nil
	}
	return s.composer.Preview(display, records[0]), nil
}

// Compose returns the body that would be sent to entry.
func (s *Session) Compose(entry WorklistEntry) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer.ComposeForTeacher(entry)
}

// Dispatch starts a campaign over the prepared worklist. Preconditions are
// checked before returning; delivery then runs in the background and keeps
// going even if ctx is cancelled. onComplete is called once at the end.
func (s *Session) Dispatch(ctx context.Context, onComplete func(CampaignResult)) error {
	s.mu.Lock()
	if s.status.InProgress {
		s.mu.Unlock()
		return ErrCampaignRunning
	}
	list := s.worklist.clone()
	s.status.InProgress = true
	s.status.Campaign = StatePermissionCheck
	s.mu.Unlock()
	s.emit(Event{Kind: EventStatusChanged})

	state, err := s.deps.Dispatcher.Preflight(ctx, list)
	if err != nil {
		s.mu.Lock()
		s.status.InProgress = false
		s.status.Campaign = state
		if errors.Is(err, ErrPermissionRequired) {
			s.status.NeedsPermission = true
		} else {
			s.status.ErrorMessage = err.Error()
		}
		s.mu.Unlock()
		s.emit(Event{Kind: EventStatusChanged})
		return err
	}

	s.mu.Lock()
	s.status.NeedsPermission = false
	s.status.Campaign = state
	s.mu.Unlock()
	s.emit(Event{Kind: EventStatusChanged})

	hooks := DispatchHooks{OnRecord: s.record}
	hooks.OnComplete = func(result CampaignResult) {
		s.mu.Lock()
		s.status.InProgress = false
		s.status.Campaign = result.State
		s.lastResult = &result
		s.mu.Unlock()
		s.emit(Event{Kind: EventStatusChanged})
		s.emit(Event{Kind: EventCampaignComplete, Result: &result})
		if onComplete != nil {
			onComplete(result)
		}
	}
	s.campaigns.Add(1)
	go func() {
		defer s.campaigns.Done()
		s.deps.Dispatcher.Deliver(context.WithoutCancel(ctx), list, s.Compose, hooks)
	}()
	return nil
}

// Wait blocks until every started campaign has delivered its last message
// and run its completion callback.
func (s *Session) Wait() {
	s.campaigns.Wait()
}

func (s *Session) record(msg sms.SentMessage) {
	s.mu.Lock()
	s.history.Append(msg)
	s.mu.Unlock()

	persisted := msg
	s.submit("append_history", func(ctx context.Context) error {
		return s.deps.History.Append(ctx, &persisted)
	}, s.deps.History != nil)
	s.emit(Event{Kind: EventMessageRecorded, Teacher: msg.TeacherName, Message: &msg})
}

// LastResult returns the result of the most recent finished campaign.
func (s *Session) LastResult() (CampaignResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return CampaignResult{}, false
	}
	return *s.lastResult, true
}

// RequestPermission asks the permission gate and updates NeedsPermission
// when the answer arrives.
func (s *Session) RequestPermission(ctx context.Context) error {
	if s.deps.Gate == nil {
		return nil
	}
	return s.deps.Gate.RequestPermission(ctx, func(granted bool) {
		s.mu.Lock()
		s.status.NeedsPermission = !granted
		s.mu.Unlock()
		s.log.WithField("granted", granted).Info("SMS permission answered")
		s.emit(Event{Kind: EventPermissionChanged})
	})
}

// LoadHistory merges persisted records into the in-memory log. Only the
// first successful call has an effect.
func (s *Session) LoadHistory(ctx context.Context) error {
	if s.deps.History == nil {
		return nil
	}
	s.mu.Lock()
	loaded := s.historyLoaded
	s.mu.Unlock()
	if loaded {
		return nil
	}

	msgs, err := s.deps.History.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sms history: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyLoaded {
		return nil
	}
	for _, m := range msgs {
		if m != nil {
			s.history.Append(*m)
		}
	}
	s.historyLoaded = true
	return nil
}

// History returns all records, oldest first.
func (s *Session) History() []sms.SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Records()
}

// RecentHistory returns up to n records, newest first.
func (s *Session) RecentHistory(n int) []sms.SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Recent(n)
}

func (s *Session) submit(name string, fn func(ctx context.Context) error, enabled bool) {
	if !enabled {
		return
	}
	if s.deps.Tasks == nil {
		go func() {
			if err := fn(context.Background()); err != nil {
				s.log.WithError(err).WithField("task", name).Warn("Background task failed")
			}
		}()
		return
	}
	s.deps.Tasks.Submit(name, fn)
}
