package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"substitute_sms_notifier/internal/domain/sms"
)

// CampaignState is the phase of one send campaign.
type CampaignState string

const (
	StateIdle            CampaignState = "idle"
	StatePermissionCheck CampaignState = "permission_check"
	StateSending         CampaignState = "sending"
	StateBlocked         CampaignState = "blocked"
	StateComplete        CampaignState = "complete"
)

// CampaignResult describes a finished or rejected campaign.
type CampaignResult struct {
	State   CampaignState
	Sent    int
	Failed  int
	Records []sms.SentMessage
}

// DispatchHooks receive campaign progress. Both are optional.
type DispatchHooks struct {
	OnRecord   func(msg sms.SentMessage)
	OnComplete func(result CampaignResult)
}

// Metrics receives counters about refreshes and campaigns.
type Metrics interface {
	MessageRecorded(status sms.Status)
	CampaignFinished(state CampaignState)
	RefreshFinished(elapsed time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) MessageRecorded(sms.Status)           {}
func (noopMetrics) CampaignFinished(CampaignState)       {}
func (noopMetrics) RefreshFinished(time.Duration, error) {}

// Dispatcher sends one message per worklist entry, strictly in order.
type Dispatcher struct {
	sender   sms.Sender
	gate     sms.PermissionGate
	interval time.Duration
	now      func() time.Time
	newID    func() string
	metrics  Metrics
	log      *logrus.Entry
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendInterval sets the pause between two consecutive messages.
func WithSendInterval(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.interval = d }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(disp *Dispatcher) { disp.now = now }
}

func WithIDGenerator(newID func() string) DispatcherOption {
	return func(disp *Dispatcher) { disp.newID = newID }
}

func WithMetrics(m Metrics) DispatcherOption {
	return func(disp *Dispatcher) {
		if m != nil {
			disp.metrics = m
		}
	}
}

func NewDispatcher(sender sms.Sender, gate sms.PermissionGate, log *logrus.Entry, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = discardLogger()
	}
	d := &Dispatcher{
		sender:  sender,
		gate:    gate,
		now:     time.Now,
		newID:   uuid.NewString,
		metrics: noopMetrics{},
		log:     log.WithField("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Preflight checks that a campaign over list may start. Permission is asked
// again on every call.
func (d *Dispatcher) Preflight(ctx context.Context, list Worklist) (CampaignState, error) {
	if len(list) == 0 {
		return StateIdle, ErrNoTeachersSelected
	}
	if d.gate != nil && !d.gate.CanSend(ctx) {
		d.log.WithField("recipients", len(list)).Warn("SMS permission not granted, campaign blocked")
		d.metrics.CampaignFinished(StateBlocked)
		return StateBlocked, ErrPermissionRequired
	}
	return StateSending, nil
}

// Run performs the preflight checks and then delivers the whole worklist.
// A rejected campaign returns the error and never calls OnComplete.
func (d *Dispatcher) Run(ctx context.Context, list Worklist, compose func(WorklistEntry) string, hooks DispatchHooks) (CampaignResult, error) {
	state, err := d.Preflight(ctx, list)
	if err != nil {
		return CampaignResult{State: state}, err
	}
	return d.Deliver(ctx, list, compose, hooks), nil
}

// Deliver sends to every entry of list without checking preconditions.
// Send failures are recorded and never stop the campaign; OnComplete is
// called exactly once after the last entry.
func (d *Dispatcher) Deliver(ctx context.Context, list Worklist, compose func(WorklistEntry) string, hooks DispatchHooks) CampaignResult {
	result := CampaignResult{State: StateSending, Records: make([]sms.SentMessage, 0, len(list))}
	d.log.WithField("recipients", len(list)).Info("Starting SMS campaign")

	for i, entry := range list {
		if i > 0 && d.interval > 0 {
			d.pause(ctx)
		}

		body := compose(entry)
		status := sms.StatusSent
		if err := d.send(ctx, entry.Phone, body); err != nil {
			status = sms.StatusFailed
			result.Failed++
			d.log.WithError(err).WithFields(logrus.Fields{
				"teacher": entry.Name,
				"phone":   entry.Phone,
			}).Error("Failed to send SMS")
		} else {
			result.Sent++
			d.log.WithField("teacher", entry.Name).Info("SMS sent")
		}

		msg := sms.SentMessage{
			ID:           d.newID(),
			TeacherName:  entry.Name,
			TeacherPhone: entry.Phone,
			Message:      body,
			Timestamp:    d.now().UnixMilli(),
			Status:       status,
		}
		result.Records = append(result.Records, msg)
		d.metrics.MessageRecorded(status)
		if hooks.OnRecord != nil {
			hooks.OnRecord(msg)
		}
	}

	result.State = StateComplete
	d.metrics.CampaignFinished(StateComplete)
	d.log.WithFields(logrus.Fields{"sent": result.Sent, "failed": result.Failed}).Info("SMS campaign complete")
	if hooks.OnComplete != nil {
		hooks.OnComplete(result)
	}
	return result
}

// send converts a panicking sender into a failed message.
func (d *Dispatcher) send(ctx context.Context, phone, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return d.sender.Send(ctx, phone, body)
}

func (d *Dispatcher) pause(ctx context.Context) {
	t := time.NewTimer(d.interval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
