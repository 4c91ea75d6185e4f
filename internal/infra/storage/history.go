package storage

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"substitute_sms_notifier/internal/domain/sms"
)

// Append adds msg to the history file. A record whose ID is already stored
// is ignored.
func (s *FileStore) Append(ctx context.Context, msg *sms.SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []*sms.SentMessage
	if _, err := s.readJSON(HistoryFile, &msgs); err != nil {
		return err
	}
	for _, m := range msgs {
		if m != nil && m.ID == msg.ID {
			return nil
		}
	}
	msgs = append(msgs, msg)
	return s.writeJSON(HistoryFile, msgs)
}

// List returns the stored history, oldest first.
func (s *FileStore) List(ctx context.Context) ([]*sms.SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []*sms.SentMessage
	if _, err := s.readJSON(HistoryFile, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MirroredHistory writes every record to a primary store and to any number
// of mirrors. Reads come from the primary only.
type MirroredHistory struct {
	primary sms.HistoryRepository
	mirrors []sms.HistoryRepository
	log     *logrus.Entry
}

func NewMirroredHistory(log *logrus.Entry, primary sms.HistoryRepository, mirrors ...sms.HistoryRepository) *MirroredHistory {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MirroredHistory{primary: primary, mirrors: mirrors, log: log.WithField("component", "history")}
}

// Append fails only when the primary write fails; mirror errors are logged.
func (h *MirroredHistory) Append(ctx context.Context, msg *sms.SentMessage) error {
	if err := h.primary.Append(ctx, msg); err != nil {
		return err
	}
	var errs []error
	for _, m := range h.mirrors {
		if err := m.Append(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		h.log.WithError(err).WithField("message_id", msg.ID).Warn("Could not mirror SMS history record")
	}
	return nil
}

func (h *MirroredHistory) List(ctx context.Context) ([]*sms.SentMessage, error) {
	return h.primary.List(ctx)
}
