package sms

import "context"

// HistoryRepository stores the dispatch history outside the process.
type HistoryRepository interface {
	Append(ctx context.Context, msg *SentMessage) error
	List(ctx context.Context) ([]*SentMessage, error)
}
