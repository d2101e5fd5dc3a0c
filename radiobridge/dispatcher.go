package radiobridge

import (
	"fmt"
	"log"
	"sync"
)

// Reply is what a dispatcher hands back to the caller that issued a
// request: either the Ok payload, or BridgeError with the Err payload.
type Reply struct {
	Data []byte
	Err  error
}

// BridgeError is returned when the radio replies with command id CmdErr.
// Grounded on original_source/src/radio_bridge/raw_service.rs's
// Error::BridgeError.
type BridgeError struct{ Payload []byte }

func (e *BridgeError) Error() string {
	return fmt.Sprintf("radio bridge error: % x", e.Payload)
}

// dispatcher assigns monotonically increasing request ids and correlates
// CmdOk/CmdErr replies with the channel the requester is waiting on.
// Grounded on the teacher's LinkMgr.PendChan/Ctrl pattern and on
// raw_service.rs's Dispatcher.
type dispatcher struct {
	mu       sync.Mutex
	nextID   uint16
	inFlight map[uint16]chan Reply
	logger   *log.Logger
}

func newDispatcher(logger *log.Logger) *dispatcher {
	return &dispatcher{inFlight: make(map[uint16]chan Reply), logger: logger}
}

// newRequest allocates a fresh request id and a one-shot reply channel.
func (d *dispatcher) newRequest() (uint16, chan Reply) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	ch := make(chan Reply, 1)
	d.inFlight[id] = ch
	return id, ch
}

func (d *dispatcher) cancel(id uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, id)
}

func (d *dispatcher) resolve(requestID uint16, data []byte) {
	d.mu.Lock()
	ch, ok := d.inFlight[requestID]
	delete(d.inFlight, requestID)
	d.mu.Unlock()
	if !ok {
		d.logger.Printf("radiobridge: ignoring Ok for unknown request %d", requestID)
		return
	}
	ch <- Reply{Data: data}
}

func (d *dispatcher) reject(requestID uint16, data []byte) {
	d.mu.Lock()
	ch, ok := d.inFlight[requestID]
	delete(d.inFlight, requestID)
	d.mu.Unlock()
	if !ok {
		d.logger.Printf("radiobridge: ignoring Err for unknown request %d", requestID)
		return
	}
	ch <- Reply{Err: &BridgeError{Payload: data}}
}

// IncomingPacket is a received over-the-air frame, delivered from command
// id CmdOnPacket.
type IncomingPacket struct {
	Packet          []byte
	RSSI            uint8
	LinkQuality     uint8
}

// handleIncoming dispatches a decoded Command to either the reply
// correlation table (Ok/Err) or the packet output channel (OnPacket).
func handleIncoming(cmd Command, disp *dispatcher, packets chan<- IncomingPacket, logger *log.Logger) {
	switch cmd.CommandID {
	case CmdOk:
		disp.resolve(cmd.RequestID, cmd.Data)
	case CmdErr:
		disp.reject(cmd.RequestID, cmd.Data)
	case CmdOnPacket:
		if len(cmd.Data) < 2 {
			logger.Printf("radiobridge: OnPacket without RSSI/LQI postfix")
			return
		}
		n := len(cmd.Data)
		packets <- IncomingPacket{
			Packet:      cmd.Data[:n-2],
			RSSI:        cmd.Data[n-2],
			LinkQuality: cmd.Data[n-1],
		}
	default:
		logger.Printf("radiobridge: unexpected command id %#x", cmd.CommandID)
	}
}
