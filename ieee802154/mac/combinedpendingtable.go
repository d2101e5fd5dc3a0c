package mac

import (
	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/frans-willem/hostmac/uniquekey"
)

// combinedPendingTableSlots is the per-address-family radio slot count (8
// short + 8 extended, per SPEC_FULL.md §4.3).
const combinedPendingTableSlots = 8

type shortPendingKey struct {
	PANID ieee802154.PANID
	Short ieee802154.ShortAddress
}

// CombinedPendingTableAction is the tagged union of actions emitted by
// CombinedPendingTable.PollAction.
type CombinedPendingTableAction interface {
	isCombinedPendingTableAction()
}

// InitAction requests that the radio-side pending table be (re-)initialized.
type InitAction struct{ Key uniquekey.Key }

func (InitAction) isCombinedPendingTableAction() {}

// UpdateShortAction requests that radio slot Index of the short-address
// table be set to Value (nil clears it).
type UpdateShortAction struct {
	Key   uniquekey.Key
	Index int
	Value *shortPendingKey
}

func (UpdateShortAction) isCombinedPendingTableAction() {}

// UpdateExtendedAction requests that radio slot Index of the extended
// table be set to Value (nil clears it).
type UpdateExtendedAction struct {
	Key   uniquekey.Key
	Index int
	Value *ieee802154.ExtendedAddress
}

func (UpdateExtendedAction) isCombinedPendingTableAction() {}

// CombinedPendingTable owns the short- and extended-address pending tables
// plus initialization bookkeeping. See SPEC_FULL.md §4.3.
type CombinedPendingTable struct {
	shortTable    *PendingTable[shortPendingKey]
	extendedTable *PendingTable[ieee802154.ExtendedAddress]
	isInitialized bool
	initInFlight  *uniquekey.Key
	broadcastPending bool
}

// SetBroadcastPending records whether a broadcast/no-destination context
// currently has indirect data pending. This bit is informational only:
// unlike the short/extended tables it has no radio-side slot to reconcile.
func (c *CombinedPendingTable) SetBroadcastPending(v bool) { c.broadcastPending = v }

// BroadcastPending reports the current value set by SetBroadcastPending.
func (c *CombinedPendingTable) BroadcastPending() bool { return c.broadcastPending }

// NewCombinedPendingTable constructs an uninitialized CombinedPendingTable.
func NewCombinedPendingTable() *CombinedPendingTable {
	return &CombinedPendingTable{
		shortTable:    NewPendingTable[shortPendingKey](combinedPendingTableSlots),
		extendedTable: NewPendingTable[ieee802154.ExtendedAddress](combinedPendingTableSlots),
	}
}

// SetShort inserts/removes (pan, short) into the short-address pending set.
func (c *CombinedPendingTable) SetShort(pan ieee802154.PANID, short ieee802154.ShortAddress, inserted bool) {
	c.shortTable.Set(shortPendingKey{PANID: pan, Short: short}, inserted)
}

// SetExtended inserts/removes addr into the extended-address pending set.
func (c *CombinedPendingTable) SetExtended(addr ieee802154.ExtendedAddress, inserted bool) {
	c.extendedTable.Set(addr, inserted)
}

// PromoteShort promotes (pan, short) to most-recently-used if present.
func (c *CombinedPendingTable) PromoteShort(pan ieee802154.PANID, short ieee802154.ShortAddress) bool {
	return c.shortTable.Promote(shortPendingKey{PANID: pan, Short: short})
}

// PromoteExtended promotes addr to most-recently-used if present.
func (c *CombinedPendingTable) PromoteExtended(addr ieee802154.ExtendedAddress) bool {
	return c.extendedTable.Promote(addr)
}

// ReportInitResult retires the in-flight init request; on success, both
// sub-tables are told to assume an empty radio-side table (re-pushing
// everything).
func (c *CombinedPendingTable) ReportInitResult(key uniquekey.Key, ok bool) {
	if c.initInFlight == nil || *c.initInFlight != key {
		return
	}
	c.initInFlight = nil
	if ok {
		c.isInitialized = true
		c.shortTable.AssumeEmpty()
		c.extendedTable.AssumeEmpty()
	}
}

// ReportShortUpdateResult forwards the result of a SetPendingShort action.
func (c *CombinedPendingTable) ReportShortUpdateResult(key uniquekey.Key, ok bool) {
	c.shortTable.ReportUpdateResult(key, ok)
}

// ReportExtendedUpdateResult forwards the result of a SetPendingExtended
// action.
func (c *CombinedPendingTable) ReportExtendedUpdateResult(key uniquekey.Key, ok bool) {
	c.extendedTable.ReportUpdateResult(key, ok)
}

// PollAction returns the next action to issue to the radio, if any, in
// priority order: Init (once), then short updates, then extended updates.
func (c *CombinedPendingTable) PollAction() (CombinedPendingTableAction, bool) {
	if !c.isInitialized {
		if c.initInFlight == nil {
			key := uniquekey.New()
			c.initInFlight = &key
			return InitAction{Key: key}, true
		}
		return nil, false
	}
	if upd, ok := c.shortTable.PollUpdate(); ok {
		return UpdateShortAction{Key: upd.Key, Index: upd.Index, Value: upd.Value}, true
	}
	if upd, ok := c.extendedTable.PollUpdate(); ok {
		return UpdateExtendedAction{Key: upd.Key, Index: upd.Index, Value: upd.Value}, true
	}
	return nil, false
}
