package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	domainTelegram "substitute_sms_notifier/internal/domain/telegram"
)

var (
	btnAllow = telebot.Btn{Text: "Allow SMS", Unique: "sms_allow"}
	btnDeny  = telebot.Btn{Text: "Deny", Unique: "sms_deny"}
)

// promptExpiry is how long an unanswered prompt suppresses a new one.
const promptExpiry = 10 * time.Minute

func permissionMarkup() *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	m.Inline(m.Row(btnAllow, btnDeny))
	return m
}

// OperatorGate asks the operator over Telegram whether SMS may be sent.
// A grant lasts until Revoke is called.
type OperatorGate struct {
	client  domainTelegram.Client
	adminID int64
	log     *logrus.Entry

	now func() time.Time

	mu         sync.Mutex
	granted    bool
	pending    []func(granted bool)
	promptedAt time.Time
}

func NewOperatorGate(client domainTelegram.Client, adminID int64, log *logrus.Entry) *OperatorGate {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OperatorGate{
		client:  client,
		adminID: adminID,
		log:     log.WithField("component", "operator_gate"),
		now:     time.Now,
	}
}

func (g *OperatorGate) CanSend(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

// RequestPermission sends the Allow/Deny prompt. onResult runs when the
// operator answers; several requests may wait on the same answer. While a
// prompt is unanswered and younger than promptExpiry no new one is sent.
func (g *OperatorGate) RequestPermission(ctx context.Context, onResult func(granted bool)) error {
	g.mu.Lock()
	now := g.now()
	prompt := g.promptedAt.IsZero() || now.Sub(g.promptedAt) >= promptExpiry
	if onResult != nil {
		g.pending = append(g.pending, onResult)
	}
	if prompt {
		g.promptedAt = now
	}
	g.mu.Unlock()
	if !prompt {
		return nil
	}

	err := g.client.SendMessage(g.adminID,
		"Sending SMS needs your permission. Allow this bot to send text messages?",
		&telebot.SendOptions{ReplyMarkup: permissionMarkup()})
	if err != nil {
		g.mu.Lock()
		g.pending = nil
		g.promptedAt = time.Time{}
		g.mu.Unlock()
		return fmt.Errorf("failed to send permission prompt: %w", err)
	}
	return nil
}

// Resolve records the operator's answer and notifies every waiting request.
func (g *OperatorGate) Resolve(granted bool) {
	g.mu.Lock()
	g.granted = granted
	waiting := g.pending
	g.pending = nil
	g.promptedAt = time.Time{}
	g.mu.Unlock()

	g.log.WithField("granted", granted).Info("Operator answered SMS permission prompt")
	for _, fn := range waiting {
		fn(granted)
	}
}

// Revoke withdraws a previous grant. Requests still waiting on a prompt are
// answered with false and the next request prompts again.
func (g *OperatorGate) Revoke() {
	g.mu.Lock()
	g.granted = false
	waiting := g.pending
	g.pending = nil
	g.promptedAt = time.Time{}
	g.mu.Unlock()

	for _, fn := range waiting {
		fn(false)
	}
}
