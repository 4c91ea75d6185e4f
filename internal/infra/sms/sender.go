package sms

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CommandSender hands each message to a local command, such as
// "termux-sms-send -n {phone} {body}". The {phone} and {body} tokens are
// replaced inside the arguments; without a {body} token the body is written
// to the command's stdin.
type CommandSender struct {
	name    string
	args    []string
	timeout time.Duration
	log     *logrus.Entry
}

func NewCommandSender(command string, timeout time.Duration, log *logrus.Entry) (*CommandSender, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("sms command is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CommandSender{
		name:    fields[0],
		args:    fields[1:],
		timeout: timeout,
		log:     log.WithField("component", "sms_command"),
	}, nil
}

func (s *CommandSender) Send(ctx context.Context, phoneNumber, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args, bodyInArgs := s.expand(phoneNumber, body)
	cmd := exec.CommandContext(ctx, s.name, args...)
	if !bodyInArgs {
		cmd.Stdin = strings.NewReader(body)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("sms command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("sms command failed: %w", err)
	}
	s.log.WithField("phone", phoneNumber).Debug("SMS command finished")
	return nil
}

func (s *CommandSender) expand(phone, body string) ([]string, bool) {
	out := make([]string, len(s.args))
	bodyInArgs := false
	for i, arg := range s.args {
		if strings.Contains(arg, "{body}") {
			bodyInArgs = true
		}
		arg = strings.ReplaceAll(arg, "{phone}", phone)
		out[i] = strings.ReplaceAll(arg, "{body}", body)
	}
	return out, bodyInArgs
}

// DryRunSender only logs messages. It is used when no SMS command is configured.
type DryRunSender struct {
	log *logrus.Entry
}

func NewDryRunSender(log *logrus.Entry) *DryRunSender {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &DryRunSender{log: log.WithField("component", "sms_dry_run")}
}

func (s *DryRunSender) Send(ctx context.Context, phoneNumber, body string) error {
	s.log.WithFields(logrus.Fields{
		"phone":  phoneNumber,
		"length": len(body),
	}).Info("Dry run: SMS not sent")
	return nil
}

// StaticGate always answers with the same permission.
type StaticGate struct {
	Granted bool
}

func (g StaticGate) CanSend(ctx context.Context) bool { return g.Granted }

func (g StaticGate) RequestPermission(ctx context.Context, onResult func(granted bool)) error {
	onResult(g.Granted)
	return nil
}
