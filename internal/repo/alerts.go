package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last up/down state seen for an instance and the last
// time a notification was sent for it (used for cooldown).
type AlertRecord struct {
	Instance   string
	LastUp     bool
	LastSentAt *time.Time
}

// AlertStore stores alert state per instance host.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, instance string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt keeps no send time.
	Set(ctx context.Context, instance string, up bool, sentAt time.Time) error
}
