package notification

import (
	"context"
	"math"
	"time"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100

	recentWindow = 24 * time.Hour
)

// ListFilter narrows List results. Zero fields match everything.
type ListFilter struct {
	Status Status
	// Email matches case-insensitively anywhere in the recipient address.
	Email string
	// CreatedBefore keeps notifications created strictly before it.
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// normalized applies the default page size and clamps out-of-range values.
func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	f.Limit = min(f.Limit, MaxListLimit)
	f.Offset = max(f.Offset, 0)
	return f
}

// Page is one window of a List result, newest first.
type Page struct {
	Data   []*Notification `json:"data"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// StatusCount is the number of notifications in one status.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

type StatusTotals struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// Stats aggregates every stored notification.
type Stats struct {
	Total    int64        `json:"total"`
	ByStatus StatusTotals `json:"by_status"`
	// ByChannel has an entry per known channel; statuses without
	// notifications are omitted from the slice.
	ByChannel          map[Channel][]StatusCount `json:"by_channel"`
	RecentLast24h      int64                     `json:"recent_last_24h"`
	SuccessRatePercent float64                   `json:"success_rate_percent"`
}

// Repository persists notifications.
type Repository interface {
	// Create stores a new notification.
	Create(ctx context.Context, n *Notification) error
	// Get returns ErrNotificationNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Notification, error)
	// Update replaces a stored notification or returns ErrNotificationNotFound.
	Update(ctx context.Context, n *Notification) error
	List(ctx context.Context, filter ListFilter) (*Page, error)
	Stats(ctx context.Context) (*Stats, error)
}

// successRate returns sent/total as a percentage rounded to two decimals.
func successRate(sent, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(sent)/float64(total)*10000) / 100
}

func (t *StatusTotals) add(s Status, n int64) {
	switch s {
	case StatusPending:
		t.Pending += n
	case StatusSent:
		t.Sent += n
	case StatusFailed:
		t.Failed += n
	}
}

func emptyChannelStats() map[Channel][]StatusCount {
	m := make(map[Channel][]StatusCount, len(Channels))
	for _, c := range Channels {
		m[c] = []StatusCount{}
	}
	return m
}
