package mac

import (
	"time"

	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/frans-willem/hostmac/uniquekey"
)

const ackTimeout = 250 * time.Millisecond

// DeviceQueueEntry owns one MSDU awaiting delivery to a single destination.
// The sequence number is assigned at enqueue time (by MacQueue.Insert) so
// that an ack's sequence number can be matched against it without needing
// to inspect the encoded frame.
type DeviceQueueEntry struct {
	Key                  uniquekey.Key
	Destination          *ieee802154.FullAddress
	SourceAddressingMode ieee802154.AddressingMode
	SequenceNumber       uint8
	AcknowledgeRequest   bool
	Indirect             bool
	Content              ieee802154.FrameType
	RetriesLeft          uint16
	TransactionDeadline  time.Time
}

type deviceQueueStateKind int

const (
	dqIdle deviceQueueStateKind = iota
	dqSending
	dqWaitingForAck
)

type deviceQueueState struct {
	kind               deviceQueueStateKind
	dataRequestPending bool          // dqIdle
	sendKey            uniquekey.Key // dqSending, dqWaitingForAck
	ackRequested       bool          // dqSending: whether radio-sent will lead to dqWaitingForAck
	ackSeqNr           uint8         // dqWaitingForAck
	timeoutAt          time.Time     // dqWaitingForAck
}

// SendAction is emitted when an entry transitions to dqSending: the service
// must build and transmit the on-air frame for Entry and report the outcome
// back via DeviceQueue.SendResult(Key, ok).
type SendAction struct {
	Key   uniquekey.Key
	Entry *DeviceQueueEntry
}

// TerminalResult is reported exactly once per DeviceQueueEntry, on its
// removal from the queue.
type TerminalResult struct {
	Key        uniquekey.Key
	Err        error // nil on success
	AckPayload []byte
}

// DeviceQueue is the per-destination send state machine of SPEC_FULL.md
// §4.2. Only the head of the FIFO is ever acted upon.
type DeviceQueue struct {
	entries []*DeviceQueueEntry
	state   deviceQueueState
}

// NewDeviceQueue constructs an empty, idle DeviceQueue.
func NewDeviceQueue() *DeviceQueue {
	return &DeviceQueue{}
}

// IsEmpty reports whether the queue has no entries left.
func (q *DeviceQueue) IsEmpty() bool { return len(q.entries) == 0 }

// IsPendingIndirect reports whether the entry the radio should be told is
// "pending" for this destination is indirect: the head, or (if the head is
// mid-delivery) the second entry.
func (q *DeviceQueue) IsPendingIndirect() bool {
	if len(q.entries) == 0 {
		return false
	}
	if q.state.kind == dqIdle {
		return q.entries[0].Indirect
	}
	if len(q.entries) > 1 {
		return q.entries[1].Indirect
	}
	return false
}

func (q *DeviceQueue) head() *DeviceQueueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

func (q *DeviceQueue) popHead() *DeviceQueueEntry {
	e := q.entries[0]
	q.entries = q.entries[1:]
	q.state = deviceQueueState{kind: dqIdle}
	return e
}

func (q *DeviceQueue) beginSending() *SendAction {
	entry := q.head()
	key := uniquekey.New()
	q.state = deviceQueueState{kind: dqSending, sendKey: key, ackRequested: entry.AcknowledgeRequest}
	return &SendAction{Key: key, Entry: entry}
}

// Enqueue appends entry to the FIFO, immediately transitioning to Sending
// and returning a SendAction if the queue was empty and either the entry is
// a direct (non-indirect) send or a DataRequest is already pending.
func (q *DeviceQueue) Enqueue(entry *DeviceQueueEntry) *SendAction {
	wasEmpty := len(q.entries) == 0
	q.entries = append(q.entries, entry)
	if !wasEmpty || q.state.kind != dqIdle {
		return nil
	}
	if !entry.Indirect || q.state.dataRequestPending {
		q.state.dataRequestPending = false
		return q.beginSending()
	}
	return nil
}

// DataRequest handles a DataRequest command received from this
// destination. If idle with an indirect head, transitions to Sending;
// otherwise records the request for the next matching enqueue.
func (q *DeviceQueue) DataRequest() *SendAction {
	if q.state.kind != dqIdle {
		return nil
	}
	if head := q.head(); head != nil && head.Indirect {
		return q.beginSending()
	}
	q.state.dataRequestPending = true
	return nil
}

// SendResult reports the outcome of transmitting the head entry's frame.
// Returns a terminal result if the entry was removed, or nil. A failed send
// that is not terminal returns the queue to idle; the retry is issued by the
// next MacQueue.Poll (direct entries) or DataRequest (indirect entries).
func (q *DeviceQueue) SendResult(key uniquekey.Key, ok bool) *TerminalResult {
	if q.state.kind != dqSending || q.state.sendKey != key {
		return nil
	}
	entry := q.head()
	if ok {
		if q.state.ackRequested {
			q.state = deviceQueueState{
				kind:      dqWaitingForAck,
				sendKey:   key,
				ackSeqNr:  entry.SequenceNumber,
				timeoutAt: time.Now().Add(ackTimeout),
			}
			return nil
		}
		q.popHead()
		return &TerminalResult{Key: entry.Key}
	}
	if entry.Indirect {
		q.state = deviceQueueState{kind: dqIdle}
		return nil
	}
	if entry.RetriesLeft > 0 {
		entry.RetriesLeft--
		q.state = deviceQueueState{kind: dqIdle}
		return nil
	}
	q.popHead()
	return &TerminalResult{Key: entry.Key, Err: SendFailure}
}

// Ack handles an acknowledgement frame bearing seqNr and its payload (the
// ack's IE/payload bytes, if any).
func (q *DeviceQueue) Ack(seqNr uint8, payload []byte) *TerminalResult {
	switch q.state.kind {
	case dqSending:
		entry := q.head()
		if !q.state.ackRequested || entry.SequenceNumber != seqNr {
			return nil
		}
		q.state.ackRequested = false
		return nil
	case dqWaitingForAck:
		if q.state.ackSeqNr != seqNr {
			return nil
		}
		entry := q.popHead()
		return &TerminalResult{Key: entry.Key, AckPayload: payload}
	default:
		return nil
	}
}

// Purge removes the entry with the given key if present, reporting it
// purged. If it was mid-delivery, the state resets to idle so the next
// entry (if any) can proceed on the following poll/data-request.
func (q *DeviceQueue) Purge(key uniquekey.Key) *TerminalResult {
	for i, e := range q.entries {
		if e.Key != key {
			continue
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		if i == 0 {
			q.state = deviceQueueState{kind: dqIdle}
		}
		return &TerminalResult{Key: key, Err: Purged}
	}
	return nil
}

// Poll checks the waiting-for-ack timeout and every entry's transaction
// deadline against now, returning any terminal results produced (an
// expired entry anywhere in the FIFO, or a timed-out head).
func (q *DeviceQueue) Poll(now time.Time) []TerminalResult {
	var results []TerminalResult

	if q.state.kind == dqWaitingForAck && !now.Before(q.state.timeoutAt) {
		entry := q.head()
		if entry.Indirect {
			q.state = deviceQueueState{kind: dqIdle}
		} else if entry.RetriesLeft > 0 {
			entry.RetriesLeft--
			q.state = deviceQueueState{kind: dqIdle}
		} else {
			q.popHead()
			results = append(results, TerminalResult{Key: entry.Key, Err: DeliveryNoAck})
		}
	}

	headWasRemoved := false
	kept := q.entries[:0]
	for i, e := range q.entries {
		if !e.TransactionDeadline.IsZero() && !now.Before(e.TransactionDeadline) {
			if i == 0 {
				headWasRemoved = true
			}
			results = append(results, TerminalResult{Key: e.Key, Err: DeliveryTransactionExpired})
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	if headWasRemoved {
		q.state = deviceQueueState{kind: dqIdle}
	}

	return results
}
