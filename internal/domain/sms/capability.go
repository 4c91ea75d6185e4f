package sms

import "context"

// Sender delivers one text message per call. A returned error marks the
// message as failed; implementations must not retry on their own.
type Sender interface {
	Send(ctx context.Context, phoneNumber, body string) error
}

// PermissionGate answers whether SMS may be sent right now and lets the
// caller ask for permission. RequestPermission returns immediately; the
// outcome is reported through onResult once known.
type PermissionGate interface {
	CanSend(ctx context.Context) bool
	RequestPermission(ctx context.Context, onResult func(granted bool)) error
}
