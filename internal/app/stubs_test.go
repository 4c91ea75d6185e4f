package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"substitute_sms_notifier/internal/domain/assignment"
	"substitute_sms_notifier/internal/domain/sms"
)

// monday is 2024-03-04.
var monday = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return monday }

func rec(sub, phone string, period int, class, orig string) assignment.Record {
	return assignment.Record{
		OriginalTeacher: orig,
		Substitute:      sub,
		SubstitutePhone: phone,
		Period:          period,
		ClassName:       class,
		Date:            "2024-03-05",
	}
}

type stubAssignments struct {
	mu      sync.Mutex
	records []assignment.Record
	err     error
	calls   int
	block   chan struct{}
}

func (s *stubAssignments) LoadAssignments(ctx context.Context) ([]assignment.Record, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.records, s.err
}

type stubContacts struct {
	mu        sync.Mutex
	selection []string
	phones    map[string]string
}

func (s *stubContacts) SaveSelection(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = append([]string(nil), names...)
	return nil
}

func (s *stubContacts) LoadSelection(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selection...), nil
}

func (s *stubContacts) SavePhoneOverrides(ctx context.Context, phones map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phones = make(map[string]string, len(phones))
	for k, v := range phones {
		s.phones[k] = v
	}
	return nil
}

func (s *stubContacts) LoadPhoneOverrides(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.phones))
	for k, v := range s.phones {
		out[k] = v
	}
	return out, nil
}

type stubHistory struct {
	mu   sync.Mutex
	msgs []*sms.SentMessage
}

func (s *stubHistory) Append(ctx context.Context, msg *sms.SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *stubHistory) List(ctx context.Context) ([]*sms.SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*sms.SentMessage(nil), s.msgs...), nil
}

type sentCall struct {
	phone string
	body  string
}

// stubSender fails for every phone listed in failFor.
type stubSender struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   []sentCall
}

func (s *stubSender) Send(ctx context.Context, phone, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sentCall{phone: phone, body: body})
	if s.failFor[phone] {
		return errors.New("radio off")
	}
	return nil
}

func (s *stubSender) Calls() []sentCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCall(nil), s.calls...)
}

type stubGate struct {
	mu      sync.Mutex
	granted bool
	checks  int
	answer  bool
}

func (g *stubGate) CanSend(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return g.granted
}

func (g *stubGate) RequestPermission(ctx context.Context, onResult func(bool)) error {
	g.mu.Lock()
	g.granted = g.answer
	answer := g.answer
	g.mu.Unlock()
	onResult(answer)
	return nil
}

// syncTasks runs submitted work inline so tests can assert on its effects.
type syncTasks struct {
	errs []error
}

func (t *syncTasks) Submit(name string, fn func(ctx context.Context) error) {
	if err := fn(context.Background()); err != nil {
		t.errs = append(t.errs, err)
	}
}

func sequentialIDs() func() string {
	var n int
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "msg-" + string(rune('0'+n))
	}
}
