package mac

import (
	"time"

	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/frans-willem/hostmac/uniquekey"
)

// macQueueKey is the comparable value standing in for Option<FullAddress>:
// the zero value (hasDestination=false) is the broadcast/no-destination
// context.
type macQueueKey struct {
	hasDestination bool
	pan            ieee802154.PANID
	mode           ieee802154.AddressingMode
	short          ieee802154.ShortAddress
	extended       ieee802154.ExtendedAddress
}

func macKeyOf(addr *ieee802154.FullAddress) macQueueKey {
	if addr == nil {
		return macQueueKey{}
	}
	k := macQueueKey{hasDestination: true, pan: addr.PANID, mode: addr.Address.Mode}
	switch addr.Address.Mode {
	case ieee802154.AddressingModeShort:
		k.short = addr.Address.Short
	case ieee802154.AddressingModeExtended:
		k.extended = addr.Address.Extended
	}
	return k
}

// Action is the tagged union of outputs drained from MacQueue.TryNextAction.
type Action interface{ isMacQueueAction() }

func (SendAction) isMacQueueAction()           {}
func (UpdateShortAction) isMacQueueAction()    {}
func (UpdateExtendedAction) isMacQueueAction() {}
func (InitAction) isMacQueueAction()           {}

// MacQueue multiplexes one DeviceQueue per destination and keeps the
// CombinedPendingTable in sync with each queue's pending-indirect bit. See
// SPEC_FULL.md §4.4.
type MacQueue struct {
	queues     map[macQueueKey]*DeviceQueue
	allKeys    map[uniquekey.Key]macQueueKey
	pending    *CombinedPendingTable
	readySends []SendAction
}

// NewMacQueue constructs an empty MacQueue.
func NewMacQueue() *MacQueue {
	return &MacQueue{
		queues:  make(map[macQueueKey]*DeviceQueue),
		allKeys: make(map[uniquekey.Key]macQueueKey),
		pending: NewCombinedPendingTable(),
	}
}

func (m *MacQueue) queueFor(key macQueueKey) *DeviceQueue {
	dq, ok := m.queues[key]
	if !ok {
		dq = NewDeviceQueue()
		m.queues[key] = dq
	}
	return dq
}

func (m *MacQueue) syncPending(key macQueueKey, dq *DeviceQueue) {
	pendingIndirect := dq.IsPendingIndirect()
	if !key.hasDestination {
		m.pending.SetBroadcastPending(pendingIndirect)
		return
	}
	switch key.mode {
	case ieee802154.AddressingModeShort:
		m.pending.SetShort(key.pan, key.short, pendingIndirect)
	case ieee802154.AddressingModeExtended:
		m.pending.SetExtended(key.extended, pendingIndirect)
	}
}

func (m *MacQueue) reapIfDone(key macQueueKey, dq *DeviceQueue) {
	if dq.IsEmpty() {
		delete(m.queues, key)
	}
}

// Insert appends entry to its destination's DeviceQueue. Returns an error
// if entry.Key was already used by an entry still in flight.
func (m *MacQueue) Insert(entry *DeviceQueueEntry) error {
	if _, dup := m.allKeys[entry.Key]; dup {
		return &StatusError{Status: InvalidHandle}
	}
	key := macKeyOf(entry.Destination)
	m.allKeys[entry.Key] = key
	dq := m.queueFor(key)
	if action := dq.Enqueue(entry); action != nil {
		m.readySends = append(m.readySends, *action)
	}
	m.syncPending(key, dq)
	return nil
}

// DataRequest handles a DataRequest command received from destination.
func (m *MacQueue) DataRequest(destination *ieee802154.FullAddress) {
	key := macKeyOf(destination)
	dq, ok := m.queues[key]
	if !ok {
		return
	}
	if action := dq.DataRequest(); action != nil {
		m.readySends = append(m.readySends, *action)
	}
	m.syncPending(key, dq)
}

// SendResult reports the outcome of transmitting the current head of
// destination's queue, whose Send action carried sendKey.
func (m *MacQueue) SendResult(destination *ieee802154.FullAddress, sendKey uniquekey.Key, ok bool) *TerminalResult {
	key := macKeyOf(destination)
	dq, exists := m.queues[key]
	if !exists {
		return nil
	}
	result := dq.SendResult(sendKey, ok)
	if result != nil {
		delete(m.allKeys, result.Key)
	}
	m.syncPending(key, dq)
	m.reapIfDone(key, dq)
	return result
}

// Ack handles an acknowledgement frame from destination carrying seqNr and
// its payload (the ack's IE/payload bytes, if any).
func (m *MacQueue) Ack(destination *ieee802154.FullAddress, seqNr uint8, payload []byte) *TerminalResult {
	key := macKeyOf(destination)
	dq, exists := m.queues[key]
	if !exists {
		return nil
	}
	result := dq.Ack(seqNr, payload)
	if result != nil {
		delete(m.allKeys, result.Key)
	}
	m.syncPending(key, dq)
	m.reapIfDone(key, dq)
	return result
}

// AckAny handles an acknowledgement frame whose destination address is
// unknown (802.15.4 ack frames carry no addressing fields): seqNr is
// matched against whichever DeviceQueue is currently WaitingForAck. payload
// carries the ack's IE/payload bytes, if any.
func (m *MacQueue) AckAny(seqNr uint8, payload []byte) *TerminalResult {
	for key, dq := range m.queues {
		result := dq.Ack(seqNr, payload)
		if result == nil {
			continue
		}
		delete(m.allKeys, result.Key)
		m.syncPending(key, dq)
		m.reapIfDone(key, dq)
		return result
	}
	return nil
}

// Purge removes the entry identified by key from wherever it currently
// lives, reporting it purged.
func (m *MacQueue) Purge(entryKey uniquekey.Key) *TerminalResult {
	destKey, ok := m.allKeys[entryKey]
	if !ok {
		return nil
	}
	dq, exists := m.queues[destKey]
	if !exists {
		return nil
	}
	result := dq.Purge(entryKey)
	if result != nil {
		delete(m.allKeys, result.Key)
	}
	m.syncPending(destKey, dq)
	m.reapIfDone(destKey, dq)
	return result
}

// Poll advances every DeviceQueue's timers (ack timeout, transaction
// expiry) against now, returning all terminal results produced. Any queue
// left idle with a direct (non-indirect) head starts sending it again, which
// is how retries and the next FIFO entry get issued.
func (m *MacQueue) Poll(now time.Time) []TerminalResult {
	var results []TerminalResult
	for key, dq := range m.queues {
		for _, r := range dq.Poll(now) {
			delete(m.allKeys, r.Key)
			results = append(results, r)
		}
		if head := dq.head(); head != nil && !head.Indirect && dq.state.kind == dqIdle {
			m.readySends = append(m.readySends, *dq.beginSending())
		}
		m.syncPending(key, dq)
		m.reapIfDone(key, dq)
	}
	return results
}

// TryNextAction drains one pending output: a ready Send first, then a
// CombinedPendingTable reconciliation action.
func (m *MacQueue) TryNextAction() (Action, bool) {
	if len(m.readySends) > 0 {
		action := m.readySends[0]
		m.readySends = m.readySends[1:]
		return action, true
	}
	if action, ok := m.pending.PollAction(); ok {
		switch a := action.(type) {
		case InitAction:
			return a, true
		case UpdateShortAction:
			return a, true
		case UpdateExtendedAction:
			return a, true
		}
	}
	return nil, false
}

// ReportPendingTableResult forwards a radio response for a pending-table
// reconciliation action to the CombinedPendingTable.
func (m *MacQueue) ReportPendingTableResult(action Action, key uniquekey.Key, ok bool) {
	switch action.(type) {
	case InitAction:
		m.pending.ReportInitResult(key, ok)
	case UpdateShortAction:
		m.pending.ReportShortUpdateResult(key, ok)
	case UpdateExtendedAction:
		m.pending.ReportExtendedUpdateResult(key, ok)
	}
}
