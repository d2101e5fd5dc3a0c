package radiobridge

import (
	"encoding/binary"
	"io"
	"log"
	"time"

	"github.com/frans-willem/hostmac/ieee802154"
)

// RadioParam enumerates the GetValue/SetValue parameters understood by the
// coprocessor. Domain-stack supplement grounded on
// original_source/src/radio_bridge/service.rs's RadioParam.
type RadioParam uint8

const (
	ParamChannel RadioParam = iota
	ParamTxPower
	ParamPanID
	ParamShortAddress
	ParamExtendedAddress
	ParamRxMode
	ParamCcaMode
	ParamCcaThreshold
)

// RadioRxMode bitpacks the receive-filtering configuration sent/read via
// ParamRxMode.
type RadioRxMode struct {
	Promiscuous          bool
	AutoAck              bool
	AddressFilterEnabled bool
}

func (m RadioRxMode) pack() byte {
	var b byte
	if m.Promiscuous {
		b |= 1 << 0
	}
	if m.AutoAck {
		b |= 1 << 1
	}
	if m.AddressFilterEnabled {
		b |= 1 << 2
	}
	return b
}

func unpackRadioRxMode(b byte) RadioRxMode {
	return RadioRxMode{
		Promiscuous:          b&(1<<0) != 0,
		AutoAck:              b&(1<<1) != 0,
		AddressFilterEnabled: b&(1<<2) != 0,
	}
}

// Client is the typed request/response surface over a coprocessor link. One
// Client owns the reader/writer goroutines for one serial port.
type Client struct {
	commandOut chan<- Command
	dispatcher *dispatcher
	packets    chan IncomingPacket
	closed     chan error
	logger     *log.Logger
}

// NewClient spawns the reader/writer/dispatch goroutines for port and
// returns a ready-to-use Client. Grounded on the teacher's RunNPI and on
// raw_service.rs's RadioBridgeService::new.
func NewClient(port io.ReadWriteCloser, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	commandOut := make(chan Command, 16)
	incoming := make(chan Command, 16)
	closed := make(chan error, 1)
	c := &Client{
		commandOut: commandOut,
		dispatcher: newDispatcher(logger),
		packets:    make(chan IncomingPacket, 16),
		closed:     closed,
		logger:     logger,
	}
	go phyWriter(port, commandOut, logger)
	go phyReader(port, incoming, closed, logger)
	go func() {
		for cmd := range incoming {
			handleIncoming(cmd, c.dispatcher, c.packets, logger)
		}
	}()
	return c
}

// Packets returns the channel of received over-the-air frames (CmdOnPacket).
func (c *Client) Packets() <-chan IncomingPacket { return c.packets }

// Closed resolves with ErrLinkClosed once the serial reader has hit EOF or
// an I/O error.
func (c *Client) Closed() <-chan error { return c.closed }

func (c *Client) request(commandID byte, data []byte) ([]byte, error) {
	id, ch := c.dispatcher.newRequest()
	c.commandOut <- Command{CommandID: commandID, RequestID: id, Data: data}
	select {
	case reply := <-ch:
		return reply.Data, reply.Err
	case <-time.After(ctrlTimeout):
		c.dispatcher.cancel(id)
		return nil, &CtrlTimeout{CommandID: commandID}
	}
}

// Prepare instructs the coprocessor to stage frame for transmission.
func (c *Client) Prepare(frame []byte) error {
	_, err := c.request(CmdPrepare, frame)
	return err
}

// Transmit instructs the coprocessor to transmit the last-prepared frame.
func (c *Client) Transmit() error {
	_, err := c.request(CmdTransmit, nil)
	return err
}

// Send prepares and transmits frame in one round trip.
func (c *Client) Send(frame []byte) error {
	_, err := c.request(CmdSend, frame)
	return err
}

// ChannelClear performs a clear-channel assessment.
func (c *Client) ChannelClear() (bool, error) {
	data, err := c.request(CmdChannelClear, nil)
	if err != nil {
		return false, err
	}
	return len(data) > 0 && data[0] != 0, nil
}

// On enables or disables the radio receiver.
func (c *Client) On(enable bool) error {
	if enable {
		_, err := c.request(CmdOn, nil)
		return err
	}
	_, err := c.request(CmdOff, nil)
	return err
}

// GetValue reads a RadioParam's raw payload.
func (c *Client) GetValue(param RadioParam) ([]byte, error) {
	return c.request(CmdGetValue, []byte{byte(param)})
}

// SetValue writes a RadioParam's raw payload.
func (c *Client) SetValue(param RadioParam, data []byte) error {
	payload := append([]byte{byte(param)}, data...)
	_, err := c.request(CmdSetValue, payload)
	return err
}

// GetObject reads an opaque, larger-than-one-value coprocessor object
// (e.g. calibration blobs) by numeric id.
func (c *Client) GetObject(id byte) ([]byte, error) {
	return c.request(CmdGetObject, []byte{id})
}

// SetObject writes an opaque coprocessor object by numeric id.
func (c *Client) SetObject(id byte, data []byte) error {
	payload := append([]byte{id}, data...)
	_, err := c.request(CmdSetObject, payload)
	return err
}

// InitPendingTable (re-)initializes the radio-side pending-address slot
// table, invalidating any previously pushed entries.
func (c *Client) InitPendingTable() error {
	_, err := c.request(CmdInitPendingTable, nil)
	return err
}

// SetPendingShort sets (or, if value is nil, clears) short-address pending
// slot. Wire payload grounded on
// original_source/src/radio_bridge/service.rs's set_pending_data_short.
func (c *Client) SetPendingShort(slot int, pan ieee802154.PANID, short *ieee802154.ShortAddress) error {
	payload := []byte{byte(slot) & 0x7F}
	if short != nil {
		var addr [4]byte
		binary.LittleEndian.PutUint16(addr[0:2], uint16(pan))
		binary.LittleEndian.PutUint16(addr[2:4], uint16(*short))
		payload = append(payload, addr[:]...)
	}
	_, err := c.request(CmdSetPending, payload)
	return err
}

// SetPendingExtended sets (or, if value is nil, clears) extended-address
// pending slot. Wire payload grounded on
// original_source/src/radio_bridge/service.rs's set_pending_data_ext.
func (c *Client) SetPendingExtended(slot int, extended *ieee802154.ExtendedAddress) error {
	payload := []byte{0x80 | (byte(slot) & 0x7F)}
	if extended != nil {
		var addr [8]byte
		binary.LittleEndian.PutUint64(addr[:], uint64(*extended))
		payload = append(payload, addr[:]...)
	}
	_, err := c.request(CmdSetPending, payload)
	return err
}

// GetChannel reads the current radio channel number.
func (c *Client) GetChannel() (uint8, error) {
	data, err := c.GetValue(ParamChannel)
	if err != nil || len(data) < 1 {
		return 0, err
	}
	return data[0], nil
}

// SetChannel sets the radio channel number.
func (c *Client) SetChannel(channel uint8) error {
	return c.SetValue(ParamChannel, []byte{channel})
}

// SetTxPower sets the radio transmit power, in the coprocessor's native
// units (typically dBm).
func (c *Client) SetTxPower(power int8) error {
	return c.SetValue(ParamTxPower, []byte{byte(power)})
}

// SetPanID sets the radio-visible PAN id.
func (c *Client) SetPanID(pan ieee802154.PANID) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(pan))
	return c.SetValue(ParamPanID, b[:])
}

// SetShortAddress sets the radio-visible short address.
func (c *Client) SetShortAddress(addr ieee802154.ShortAddress) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(addr))
	return c.SetValue(ParamShortAddress, b[:])
}

// SetExtendedAddress sets the radio-visible extended address.
func (c *Client) SetExtendedAddress(addr ieee802154.ExtendedAddress) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(addr))
	return c.SetValue(ParamExtendedAddress, b[:])
}

// SetRxMode sets the receive-filtering mode.
func (c *Client) SetRxMode(mode RadioRxMode) error {
	return c.SetValue(ParamRxMode, []byte{mode.pack()})
}

// GetRxMode reads the receive-filtering mode.
func (c *Client) GetRxMode() (RadioRxMode, error) {
	data, err := c.GetValue(ParamRxMode)
	if err != nil || len(data) < 1 {
		return RadioRxMode{}, err
	}
	return unpackRadioRxMode(data[0]), nil
}
