package app

import "substitute_sms_notifier/internal/domain/sms"

// HistoryLog is the in-memory, append-only record of message attempts.
type HistoryLog struct {
	records []sms.SentMessage
	ids     map[string]struct{}
}

func NewHistoryLog() *HistoryLog {
	return &HistoryLog{ids: make(map[string]struct{})}
}

// Append adds msg unless a record with the same ID is already present.
func (h *HistoryLog) Append(msg sms.SentMessage) bool {
	if _, ok := h.ids[msg.ID]; ok && msg.ID != "" {
		return false
	}
	h.ids[msg.ID] = struct{}{}
	h.records = append(h.records, msg)
	return true
}

func (h *HistoryLog) Len() int { return len(h.records) }

// Records returns a copy of all records, oldest first.
func (h *HistoryLog) Records() []sms.SentMessage {
	out := make([]sms.SentMessage, len(h.records))
	copy(out, h.records)
	return out
}

// Recent returns up to n of the newest records, newest first.
func (h *HistoryLog) Recent(n int) []sms.SentMessage {
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]sms.SentMessage, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i])
	}
	return out
}
