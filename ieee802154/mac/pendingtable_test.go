package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPendingTableMRUEviction exercises a four-slot variant of the MRU
// eviction scenario in SPEC_FULL.md §8:
// insert A,B,C,D into a 4-slot table (filling it), promote B, then insert a
// fifth value E. E must evict A's slot, since A is the only value that has
// not been freshly inserted or promoted since the table filled up.
func TestPendingTableMRUEviction(t *testing.T) {
	table := NewPendingTable[string](4)

	table.Insert("A")
	table.Insert("B")
	table.Insert("C")
	table.Insert("D")

	assert.True(t, table.Promote("B"))

	table.Insert("E")

	// E took over slot 0, which held A.
	index, resident := table.getIndex("E")
	assert.True(t, resident)
	assert.Equal(t, 0, index)
	_, resident = table.getIndex("A")
	assert.False(t, resident)

	// A's slot was evicted but A remains in the logical set until Remove is
	// called explicitly.
	assert.True(t, table.Contains("A"))
	assert.True(t, table.Contains("B"))
	assert.True(t, table.Contains("C"))
	assert.True(t, table.Contains("D"))
	assert.True(t, table.Contains("E"))
}

func TestPendingTableInsertRemove(t *testing.T) {
	table := NewPendingTable[int](2)

	assert.True(t, table.Insert(1))
	assert.False(t, table.Insert(1)) // already present

	assert.True(t, table.Remove(1))
	assert.False(t, table.Remove(1)) // already gone
	assert.False(t, table.Contains(1))
}

func TestPendingTablePromoteUnknownValue(t *testing.T) {
	table := NewPendingTable[int](2)
	assert.False(t, table.Promote(99))
}

func TestPendingTablePollUpdateSerializesOneAtATime(t *testing.T) {
	table := NewPendingTable[int](2)
	table.Insert(1)

	update, ok := table.PollUpdate()
	require.True(t, ok)

	// No second update is handed out while one is in flight.
	_, ok = table.PollUpdate()
	assert.False(t, ok)

	table.ReportUpdateResult(update.Key, true)

	// A fresh dirty slot (the other, still-empty one) becomes available.
	_, ok = table.PollUpdate()
	assert.True(t, ok)
}

func TestPendingTableReportUpdateResultFailureRetriesSlot(t *testing.T) {
	table := NewPendingTable[int](1)
	table.Insert(1)

	update, ok := table.PollUpdate()
	require.True(t, ok)

	table.ReportUpdateResult(update.Key, false)

	retry, ok := table.PollUpdate()
	require.True(t, ok)
	assert.Equal(t, update.Index, retry.Index)
}
