package syncer

import (
	"testing"
	"time"

	"deenice_finds/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func mkOrder(id string, ageHours int, status domain.OrderStatus, rev uint64) domain.Order {
	at := t0.Add(-time.Duration(ageHours) * time.Hour)
	return domain.Order{
		ID:            id,
		OrderDate:     at,
		Status:        status,
		StatusUpdated: at,
		Revision:      rev,
		Customer:      domain.Customer{Name: "Otieno", City: "Nakuru", Phone: "0711000222"},
		Items:         []domain.OrderItem{{Title: "Power bank", Price: 3500, Quantity: 1}},
		Notes:         "gate B",
	}
}

func TestMerge_ServerOwnsStatusFields(t *testing.T) {
	local := []domain.Order{mkOrder("DFA", 2, domain.StatusPending, 1)}
	local[0].ProgressHistory = []domain.ProgressEntry{{Status: domain.StatusPending, Timestamp: local[0].StatusUpdated, Step: 1}}

	done := t0
	server := mkOrder("DFA", 2, domain.StatusCompleted, 4)
	server.StatusUpdated = done
	server.CompletedDate = &done
	server.Notes = "edited on the server"
	server.Customer.Name = "Someone Else"

	merged, changed := Merge(local, []domain.Order{server})
	require.Len(t, merged, 1)
	assert.Equal(t, 1, changed)

	got := merged[0]
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.True(t, done.Equal(got.StatusUpdated))
	assert.Equal(t, uint64(4), got.Revision)
	require.NotNil(t, got.CompletedDate)
	assert.True(t, done.Equal(*got.CompletedDate))

	assert.Equal(t, "gate B", got.Notes, "shopper fields stay local")
	assert.Equal(t, "Otieno", got.Customer.Name)
	assert.Len(t, got.ProgressHistory, 1)

	assert.Equal(t, domain.StatusPending, local[0].Status, "input is not mutated")
}

func TestMerge_KeepsLocalOnlyAndInsertsUnknown(t *testing.T) {
	local := []domain.Order{
		mkOrder("DFA", 3, domain.StatusPending, 1),
		mkOrder("LOCAL-1", 1, domain.StatusPending, 0),
	}
	server := []domain.Order{mkOrder("DFN", 2, domain.StatusProcessing, 7)}

	merged, changed := Merge(local, server)
	assert.Equal(t, 1, changed)
	got := make([]string, len(merged))
	for i, o := range merged {
		got[i] = o.ID
	}
	assert.Equal(t, []string{"LOCAL-1", "DFN", "DFA"}, got, "newest orderDate first")
}

func TestMerge_IdenticalRecordIsNotAChange(t *testing.T) {
	local := []domain.Order{mkOrder("DFA", 1, domain.StatusProcessing, 3)}
	done := t0
	local[0].CompletedDate = &done

	server := mkOrder("DFA", 1, domain.StatusProcessing, 3)
	merged, changed := Merge(local, []domain.Order{server})

	assert.Zero(t, changed)
	require.NotNil(t, merged[0].CompletedDate, "a missing server completedDate never clears the local one")
}

func TestMerge_Empty(t *testing.T) {
	merged, changed := Merge(nil, nil)
	assert.Empty(t, merged)
	assert.Zero(t, changed)
}
