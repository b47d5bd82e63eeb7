package notification

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is a Repository kept in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Notification)}
}

func (r *MemoryRepository) Create(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[n.ID]; ok {
		return fmt.Errorf("%w: duplicate id %s", ErrFailedToPersist, n.ID)
	}
	r.items[n.ID] = n.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	return n.Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[n.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, n.ID)
	}
	r.items[n.ID] = n.Clone()
	return nil
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) (*Page, error) {
	filter = filter.normalized()
	email := strings.ToLower(filter.Email)

	r.mu.RLock()
	matched := make([]*Notification, 0, len(r.items))
	for _, n := range r.items {
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if email != "" && !strings.Contains(strings.ToLower(n.Email), email) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !n.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		matched = append(matched, n)
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	page := &Page{
		Data:   []*Notification{},
		Total:  int64(len(matched)),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.Offset >= len(matched) {
		return page, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	for _, n := range matched[filter.Offset:end] {
		page.Data = append(page.Data, n.Clone())
	}
	return page, nil
}

func (r *MemoryRepository) Stats(_ context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	since := time.Now().UTC().Add(-recentWindow)
	perChannel := make(map[Channel]map[Status]int64, len(Channels))

	st := &Stats{ByChannel: emptyChannelStats()}
	for _, n := range r.items {
		st.Total++
		st.ByStatus.add(n.Status, 1)
		if !n.CreatedAt.Before(since) {
			st.RecentLast24h++
		}
		for _, c := range n.Channels {
			if perChannel[c] == nil {
				perChannel[c] = make(map[Status]int64)
			}
			perChannel[c][n.Status]++
		}
	}

	for c, counts := range perChannel {
		for _, s := range Statuses {
			if counts[s] > 0 {
				st.ByChannel[c] = append(st.ByChannel[c], StatusCount{Status: s, Count: counts[s]})
			}
		}
	}
	st.SuccessRatePercent = successRate(st.ByStatus.Sent, st.Total)
	return st, nil
}
