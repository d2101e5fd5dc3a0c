package mac

import "github.com/frans-willem/hostmac/uniquekey"

type pendingTableEntry[T any] struct {
	dirty bool
	value *T
}

// PendingTable reconciles an unbounded logical set of T against a fixed-size
// (N-slot) radio-side table using most-recently-promoted eviction. See
// SPEC_FULL.md §4.3.
type PendingTable[T comparable] struct {
	values   map[T]struct{}
	table    []pendingTableEntry[T]
	order    []int // order[0] is the next slot to be overwritten
	updating *pendingTableUpdating
}

type pendingTableUpdating struct {
	key   uniquekey.Key
	index int
}

// PendingTableUpdate is what PollUpdate hands back when a slot needs to be
// reconciled with the radio: set slot Index to Value (nil clears it).
type PendingTableUpdate[T any] struct {
	Key   uniquekey.Key
	Index int
	Value *T
}

// NewPendingTable constructs a table with size slots, all initially dirty
// (empty slots are pushed to the radio once so it starts in a known state).
func NewPendingTable[T comparable](size int) *PendingTable[T] {
	table := make([]pendingTableEntry[T], size)
	for i := range table {
		table[i] = pendingTableEntry[T]{dirty: true}
	}
	order := make([]int, size)
	for i := range order {
		order[i] = i
	}
	return &PendingTable[T]{
		values: make(map[T]struct{}),
		table:  table,
		order:  order,
	}
}

// AssumeEmpty marks every non-empty slot dirty (so it will be re-pushed) and
// every empty slot clean. Call after the radio table has been
// (re-)initialized.
func (t *PendingTable[T]) AssumeEmpty() {
	for i := range t.table {
		t.table[i].dirty = t.table[i].value != nil
	}
}

func (t *PendingTable[T]) getIndex(value T) (int, bool) {
	for i, entry := range t.table {
		if entry.value != nil && *entry.value == value {
			return i, true
		}
	}
	return 0, false
}

func (t *PendingTable[T]) promoteIndex(index int) {
	t.removeFromOrder(index)
	t.order = append(t.order, index)
}

func (t *PendingTable[T]) demoteIndex(index int) {
	t.removeFromOrder(index)
	t.order = append([]int{index}, t.order...)
}

func (t *PendingTable[T]) removeFromOrder(index int) {
	for i, v := range t.order {
		if v == index {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Promote ensures value is resident in the table (evicting the oldest slot
// if necessary) and marks it most-recently-used. Returns whether value is a
// member of the logical set at all.
func (t *PendingTable[T]) Promote(value T) bool {
	if _, ok := t.values[value]; !ok {
		return false
	}
	index, ok := t.getIndex(value)
	if !ok {
		index = t.order[0]
		v := value
		t.table[index] = pendingTableEntry[T]{dirty: true, value: &v}
	}
	t.promoteIndex(index)
	return true
}

// Set inserts or removes value depending on inserted.
func (t *PendingTable[T]) Set(value T, inserted bool) {
	if inserted {
		t.Insert(value)
	} else {
		t.Remove(value)
	}
}

// Insert adds value to the logical set and promotes it. Returns true if it
// was not already present.
func (t *PendingTable[T]) Insert(value T) bool {
	_, existed := t.values[value]
	t.values[value] = struct{}{}
	t.Promote(value)
	return !existed
}

// Contains reports logical set membership.
func (t *PendingTable[T]) Contains(value T) bool {
	_, ok := t.values[value]
	return ok
}

// Remove removes value from the logical set and, if resident, clears its
// slot. Returns true if it was present.
func (t *PendingTable[T]) Remove(value T) bool {
	if _, ok := t.values[value]; !ok {
		return false
	}
	delete(t.values, value)
	if index, ok := t.getIndex(value); ok {
		t.table[index] = pendingTableEntry[T]{dirty: true}
		t.demoteIndex(index)
	}
	return true
}

// ReportUpdateResult retires the in-flight update if token matches; on
// failure the slot is remarked dirty for retry.
func (t *PendingTable[T]) ReportUpdateResult(token uniquekey.Key, ok bool) {
	if t.updating == nil || t.updating.key != token {
		return
	}
	index := t.updating.index
	t.updating = nil
	if !ok {
		t.table[index].dirty = true
	}
}

// PollUpdate returns the next dirty slot to reconcile with the radio, if any
// and if no update is currently in flight.
func (t *PendingTable[T]) PollUpdate() (PendingTableUpdate[T], bool) {
	if t.updating != nil {
		return PendingTableUpdate[T]{}, false
	}
	for i := range t.table {
		if t.table[i].dirty {
			t.table[i].dirty = false
			key := uniquekey.New()
			t.updating = &pendingTableUpdating{key: key, index: i}
			return PendingTableUpdate[T]{Key: key, Index: i, Value: t.table[i].value}, true
		}
	}
	return PendingTableUpdate[T]{}, false
}
