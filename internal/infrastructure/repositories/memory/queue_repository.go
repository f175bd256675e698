package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"supermock/internal/core/domain"
)

type queueRepository struct {
	run access
}

func (r *queueRepository) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	return r.run(func(st *state) error {
		if _, exists := st.queue[entry.ID]; exists {
			return fmt.Errorf("queue entry already exists: %s", entry.ID)
		}
		for _, e := range st.queue {
			if e.Status == domain.QueueWaiting && e.UserID == entry.UserID &&
				e.Role == entry.Role && e.SlotUTC.Equal(entry.SlotUTC) {
				return domain.ErrDuplicateEntry
			}
		}

		entry.Seq = st.nextSeq()
		st.queue[entry.ID] = *entry
		return nil
	})
}

func (r *queueRepository) FindWaiting(ctx context.Context, userID domain.UserID, role domain.Role, slot time.Time) (*domain.QueueEntry, error) {
	var found *domain.QueueEntry
	err := r.run(func(st *state) error {
		for _, e := range st.queue {
			if e.Status == domain.QueueWaiting && e.UserID == userID && e.Role == role && e.SlotUTC.Equal(slot) {
				e := e
				found = &e
				return nil
			}
		}
		return domain.ErrEntryNotFound
	})
	return found, err
}

func (r *queueRepository) ListWaiting(ctx context.Context, filter domain.WaitingFilter) ([]domain.QueueEntry, error) {
	var entries []domain.QueueEntry
	err := r.run(func(st *state) error {
		for _, e := range st.queue {
			if e.Status != domain.QueueWaiting {
				continue
			}
			if filter.Role != "" && e.Role != filter.Role {
				continue
			}
			if !filter.SlotUTC.IsZero() && !e.SlotUTC.Equal(filter.SlotUTC) {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	sortFIFO(entries)
	return entries, err
}

func (r *queueRepository) MarkMatched(ctx context.Context, ids ...string) error {
	return r.transition(ids, domain.QueueMatched)
}

func (r *queueRepository) MarkExpired(ctx context.Context, ids ...string) error {
	return r.transition(ids, domain.QueueExpired)
}

func (r *queueRepository) transition(ids []string, to domain.QueueStatus) error {
	return r.run(func(st *state) error {
		for _, id := range ids {
			e, ok := st.queue[id]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
			}
			if e.Status != domain.QueueWaiting {
				return fmt.Errorf("%w: entry %s is %s", domain.ErrInvalidTransition, id, e.Status)
			}
		}
		for _, id := range ids {
			e := st.queue[id]
			e.Status = to
			st.queue[id] = e
		}
		return nil
	})
}

func (r *queueRepository) WaitingKeys(ctx context.Context) ([]domain.QueueKey, error) {
	var keys []domain.QueueKey
	err := r.run(func(st *state) error {
		seen := make(map[domain.QueueKey]struct{})
		for _, e := range st.queue {
			if e.Status != domain.QueueWaiting {
				continue
			}
			k := domain.QueueKey{SlotUTC: e.SlotUTC, Profession: e.Profession, Language: e.Language}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		return nil
	})

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.SlotUTC.Equal(b.SlotUTC) {
			return a.SlotUTC.Before(b.SlotUTC)
		}
		if a.Profession != b.Profession {
			return a.Profession < b.Profession
		}
		return a.Language < b.Language
	})
	return keys, err
}

func (r *queueRepository) ListStale(ctx context.Context, slotBefore time.Time) ([]domain.QueueEntry, error) {
	var entries []domain.QueueEntry
	err := r.run(func(st *state) error {
		for _, e := range st.queue {
			if e.Status == domain.QueueWaiting && e.SlotUTC.Before(slotBefore) {
				entries = append(entries, e)
			}
		}
		return nil
	})
	sortFIFO(entries)
	return entries, err
}

func sortFIFO(entries []domain.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return domain.EntryBefore(entries[i], entries[j])
	})
}
