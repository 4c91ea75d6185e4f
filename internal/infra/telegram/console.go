package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"substitute_sms_notifier/internal/app"
	"substitute_sms_notifier/internal/domain/sms"
	"substitute_sms_notifier/internal/domain/teacher"
	domainTelegram "substitute_sms_notifier/internal/domain/telegram"
)

const historyPageSize = 10

// Console is the operator's Telegram interface to the session.
type Console struct {
	session *app.Session
	gate    *OperatorGate // nil when permission is granted statically
	client  domainTelegram.Client
	adminID int64
	log     *logrus.Entry
}

func NewConsole(session *app.Session, gate *OperatorGate, client domainTelegram.Client, adminID int64, log *logrus.Entry) *Console {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Console{
		session: session,
		gate:    gate,
		client:  client,
		adminID: adminID,
		log:     log.WithField("component", "console"),
	}
}

// Register installs all operator commands on b. Only the admin may use them.
func (c *Console) Register(ctx context.Context, b *telebot.Bot) {
	commands := map[string]func(ctx context.Context, args []string, payload string) string{
		"/start":      c.help,
		"/help":       c.help,
		"/refresh":    c.refresh,
		"/teachers":   c.teachers,
		"/select":     c.selectTeacher,
		"/select_all": c.selectAll,
		"/clear":      c.clearSelection,
		"/prepare":    c.prepare,
		"/phone":      c.phone,
		"/template":   c.template,
		"/preview":    c.preview,
		"/send":       c.send,
		"/history":    c.history,
		"/revoke":     c.revoke,
	}
	for command, handle := range commands {
		command, handle := command, handle
		b.Handle(command, func(tc telebot.Context) error {
			logCtx := c.log.WithFields(logrus.Fields{
				"command":   command,
				"sender_id": tc.Sender().ID,
			})
			if tc.Sender().ID != c.adminID {
				logCtx.Warn("Unauthorized access attempt")
				return tc.Send("You are not allowed to use this bot.")
			}
			logCtx.Info("Command received")
			return tc.Send(handle(ctx, tc.Args(), tc.Message().Payload))
		})
	}

	b.Handle(&btnAllow, func(tc telebot.Context) error { return c.answerPermission(tc, true) })
	b.Handle(&btnDeny, func(tc telebot.Context) error { return c.answerPermission(tc, false) })
}

func (c *Console) answerPermission(tc telebot.Context, granted bool) error {
	if tc.Sender().ID != c.adminID || c.gate == nil {
		return tc.Respond(&telebot.CallbackResponse{Text: "Not allowed."})
	}
	c.gate.Resolve(granted)
	if err := tc.Respond(); err != nil {
		c.log.WithError(err).Warn("Failed to answer callback")
	}
	if granted {
		return tc.Edit("SMS sending allowed. Use /send to start the campaign.")
	}
	return tc.Edit("SMS sending denied.")
}

// NotifyAdmin sends text to the operator.
func (c *Console) NotifyAdmin(text string) error {
	return c.client.SendMessage(c.adminID, text, nil)
}

func (c *Console) help(context.Context, []string, string) string {
	var b strings.Builder
	b.WriteString("Substitute SMS commands:\n\n")
	b.WriteString("/refresh - reload assignments\n")
	b.WriteString("/teachers - list teachers with assignments\n")
	b.WriteString("/select <name> - toggle a teacher\n")
	b.WriteString("/select_all, /clear - select or clear everyone\n")
	b.WriteString("/prepare - build the worklist from the selection\n")
	b.WriteString("/phone <name> <number> - set a phone number\n")
	b.WriteString("/template [text] - show or change the message template\n")
	b.WriteString("/preview <name> - preview a message\n")
	b.WriteString("/send - send SMS to the worklist\n")
	b.WriteString("/history - recent messages\n")
	b.WriteString("/revoke - withdraw SMS permission")
	return b.String()
}

func (c *Console) refresh(ctx context.Context, _ []string, _ string) string {
	if err := c.session.Refresh(ctx); err != nil {
		return fmt.Sprintf("Could not load assignments: %v", err)
	}
	return fmt.Sprintf("Loaded %d teachers with assignments.", len(c.session.Teachers()))
}

func (c *Console) teachers(context.Context, []string, string) string {
	views := c.session.Teachers()
	if len(views) == 0 {
		return "No assignments loaded. Use /refresh."
	}
	var b strings.Builder
	for i, v := range views {
		mark := "[ ]"
		if v.Selected {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "%d. %s %s: %s\n   %s\n", i+1, mark, v.Name, describePhone(v), v.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describePhone(v app.TeacherView) string {
	if v.PhoneSource == teacher.PhoneSourceMissing {
		return "no phone"
	}
	state := "valid"
	if !v.PhoneValid {
		state = "invalid"
	}
	return fmt.Sprintf("%s (%s, %s)", v.Phone, v.PhoneSource, state)
}

func (c *Console) selectTeacher(_ context.Context, _ []string, payload string) string {
	name := strings.TrimSpace(payload)
	if name == "" {
		return "Usage: /select <name>"
	}
	display, selected, err := c.session.ToggleSelected(name)
	if err != nil {
		return fmt.Sprintf("Teacher %q not found.", name)
	}
	if selected {
		return fmt.Sprintf("%s selected.", display)
	}
	return fmt.Sprintf("%s unselected.", display)
}

func (c *Console) selectAll(context.Context, []string, string) string {
	c.session.SelectAll(true)
	return "All teachers selected."
}

func (c *Console) clearSelection(context.Context, []string, string) string {
	c.session.SelectAll(false)
	return "Selection cleared."
}

func (c *Console) prepare(context.Context, []string, string) string {
	list := c.session.PrepareWorklist()
	if len(list) == 0 {
		return "No teachers selected."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Worklist (%d):\n", len(list))
	for i, e := range list {
		phone := e.Phone
		if phone == "" {
			phone = "no phone"
		}
		fmt.Fprintf(&b, "%d. %s: %s, %s\n", i+1, e.Name, phone, app.Summarize(e.Assignments))
	}
	if missing := list.MissingPhoneTeachers(); len(missing) > 0 {
		fmt.Fprintf(&b, "\nMissing or invalid phone: %s\nUse /phone <name> <number>.", strings.Join(missing, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) phone(_ context.Context, args []string, _ string) string {
	if len(args) < 2 {
		return "Usage: /phone <name> <number>"
	}
	name, number := c.splitNameAndNumber(args)
	display, err := c.session.UpdatePhone(name, number)
	if err != nil {
		return fmt.Sprintf("Teacher %q not found.", name)
	}
	if !teacher.IsValidPhone(number) {
		return fmt.Sprintf("Saved %s for %s, but it does not look like a valid phone number.", number, display)
	}
	return fmt.Sprintf("Saved %s for %s.", number, display)
}

// splitNameAndNumber takes the longest leading run of args naming a known
// teacher as the name and the rest as the number, so numbers may contain
// spaces. Without a match the last argument is the number.
func (c *Console) splitNameAndNumber(args []string) (string, string) {
	known := make(map[string]bool)
	for _, v := range c.session.Teachers() {
		known[teacher.NormalizeName(v.Name)] = true
	}
	for _, e := range c.session.Worklist() {
		known[teacher.NormalizeName(e.Name)] = true
	}
	for i := len(args) - 1; i > 0; i-- {
		name := strings.Join(args[:i], " ")
		if known[teacher.NormalizeName(name)] {
			return name, strings.Join(args[i:], " ")
		}
	}
	return strings.Join(args[:len(args)-1], " "), args[len(args)-1]
}

func (c *Console) template(_ context.Context, _ []string, payload string) string {
	if tmpl := strings.TrimSpace(payload); tmpl != "" {
		c.session.SetTemplate(tmpl)
		return "Template updated."
	}
	return "Current template:\n" + c.session.Template() +
		"\n\nPlaceholders: {substitute} {class} {period} {date} {day} {original_teacher}"
}

func (c *Console) preview(_ context.Context, _ []string, payload string) string {
	name := strings.TrimSpace(payload)
	if name == "" {
		list := c.session.Worklist()
		if len(list) == 0 {
			return "Usage: /preview <name>, or /prepare first."
		}
		return c.session.Compose(list[0])
	}
	for _, e := range c.session.Worklist() {
		if strings.EqualFold(e.Name, name) || teacher.NormalizeName(e.Name) == teacher.NormalizeName(name) {
			return c.session.Compose(e)
		}
	}
	msg, err := c.session.Preview(name)
	if err != nil {
		return fmt.Sprintf("Teacher %q not found.", name)
	}
	if msg == "" {
		return "No assignments for this teacher."
	}
	return msg
}

func (c *Console) send(ctx context.Context, _ []string, _ string) string {
	list := c.session.Worklist()
	if missing := list.MissingPhoneTeachers(); len(list) > 0 && len(missing) > 0 {
		return fmt.Sprintf("Cannot send: missing or invalid phone for %s.", strings.Join(missing, ", "))
	}

	err := c.session.Dispatch(ctx, c.reportCampaign)
	switch {
	case err == nil:
		return fmt.Sprintf("Sending %d messages...", len(list))
	case errors.Is(err, app.ErrNoTeachersSelected):
		return "No teachers selected. Use /select and /prepare first."
	case errors.Is(err, app.ErrPermissionRequired):
		if reqErr := c.session.RequestPermission(ctx); reqErr != nil {
			c.log.WithError(reqErr).Error("Failed to request SMS permission")
			return "SMS permission is required, and the permission prompt could not be sent."
		}
		return "SMS permission is required. Answer the prompt, then /send again."
	case errors.Is(err, app.ErrCampaignRunning):
		return "A campaign is already running."
	default:
		return fmt.Sprintf("Could not start sending: %v", err)
	}
}

func (c *Console) reportCampaign(result app.CampaignResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "Campaign complete: %d sent, %d failed.", result.Sent, result.Failed)
	for _, r := range result.Records {
		if r.Status == sms.StatusFailed {
			fmt.Fprintf(&b, "\nFailed: %s (%s)", r.TeacherName, r.TeacherPhone)
		}
	}
	if err := c.NotifyAdmin(b.String()); err != nil {
		c.log.WithError(err).Error("Failed to report campaign result")
	}
}

func (c *Console) history(context.Context, []string, string) string {
	recent := c.session.RecentHistory(historyPageSize)
	if len(recent) == 0 {
		return "No messages sent yet."
	}
	var b strings.Builder
	for _, m := range recent {
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
		fmt.Fprintf(&b, "%s %s %s (%s)\n", ts, m.Status, m.TeacherName, m.TeacherPhone)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) revoke(context.Context, []string, string) string {
	if c.gate == nil {
		return "Permission is granted by configuration."
	}
	c.gate.Revoke()
	return "SMS permission withdrawn."
}
