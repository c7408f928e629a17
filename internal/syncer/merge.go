package syncer

import (
	"sort"
	"time"

	"deenice_finds/internal/domain"
)

// Merge folds server records into the local list. Every local order is kept. For a
// known id only the server-owned fields (status, statusUpdated, completedDate,
// revision) are taken from the server; everything else stays as the shopper has it.
// Unknown ids are inserted whole. The result is sorted by orderDate, newest first,
// and changed counts the orders that were inserted or actually differ.
func Merge(local, server []domain.Order) ([]domain.Order, int) {
	out := make([]domain.Order, len(local))
	index := make(map[string]int, len(local))
	for i := range local {
		out[i] = local[i].Clone()
		index[local[i].ID] = i
	}

	changed := 0
	for _, s := range server {
		i, ok := index[s.ID]
		if !ok {
			index[s.ID] = len(out)
			out = append(out, s.Clone())
			changed++
			continue
		}
		if applyServerFields(&out[i], &s) {
			changed++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out, changed
}

func applyServerFields(dst, src *domain.Order) bool {
	differs := dst.Status != src.Status ||
		!dst.StatusUpdated.Equal(src.StatusUpdated) ||
		dst.Revision != src.Revision ||
		(src.CompletedDate != nil && !sameTime(dst.CompletedDate, src.CompletedDate))

	dst.Status = src.Status
	dst.StatusUpdated = src.StatusUpdated
	dst.Revision = src.Revision
	if src.CompletedDate != nil {
		t := *src.CompletedDate
		dst.CompletedDate = &t
	}
	return differs
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
