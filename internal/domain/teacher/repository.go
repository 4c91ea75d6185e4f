package teacher

import (
	"context"
)

// ContactRepository persists operator choices that survive a restart:
// the last prepared selection and phone numbers entered by hand.
type ContactRepository interface {
	SaveSelection(ctx context.Context, names []string) error
	LoadSelection(ctx context.Context) ([]string, error)
	SavePhoneOverrides(ctx context.Context, phones map[string]string) error
	LoadPhoneOverrides(ctx context.Context) (map[string]string, error)
}
