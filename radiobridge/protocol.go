// Package radiobridge implements the "ZPB"-framed wire protocol, request/
// response correlation and typed parameter surface used to drive the radio
// coprocessor. It is the Go translation of original_source/src/radio_bridge
// and original_source/src/radio, using the teacher's serial/channel idiom
// (npi_phy.go, npi_linkmgr.go) for the transport plumbing.
package radiobridge

import (
	"bytes"
	"encoding/binary"
)

// Command ids understood by the radio coprocessor (SPEC_FULL.md §6).
const (
	CmdPrepare          byte = 0
	CmdTransmit         byte = 1
	CmdSend             byte = 2
	CmdChannelClear     byte = 3
	CmdOn               byte = 4
	CmdOff              byte = 5
	CmdGetValue         byte = 6
	CmdSetValue         byte = 7
	CmdGetObject        byte = 8
	CmdSetObject        byte = 9
	CmdInitPendingTable byte = 10
	CmdSetPending       byte = 11
	CmdOk               byte = 0x80
	CmdErr              byte = 0x81
	CmdOnPacket         byte = 0xC0
)

var magic = []byte("ZPB")

// Command is one frame of the wire protocol: a command id, a request id
// used to correlate replies with requests, and an opaque payload.
type Command struct {
	CommandID byte
	RequestID uint16
	Data      []byte
}

// Encode serializes cmd to its on-wire byte representation. The payload is
// clamped to 0xFFFF bytes, matching the length field's width.
func (cmd Command) Encode() []byte {
	data := cmd.Data
	if len(data) > 0xFFFF {
		data = data[:0xFFFF]
	}
	buf := &bytes.Buffer{}
	buf.Grow(len(magic) + 1 + 2 + 2 + len(data))
	buf.Write(magic)
	buf.WriteByte(cmd.CommandID)
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], cmd.RequestID)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(data)))
	buf.Write(hdr[:])
	buf.Write(data)
	return buf.Bytes()
}

type decoderState int

const (
	stateWaitingForMagic decoderState = iota
	stateWaitingForCommandID
	stateWaitingForRequestID
	stateWaitingForLength
	stateWaitingForData
)

// Decoder incrementally parses a byte stream into Commands, resynchronizing
// on the "ZPB" magic sequence whenever framing is lost. It is not safe for
// concurrent use; one Decoder belongs to one reader goroutine, matching the
// teacher's npiPhyReader.
type Decoder struct {
	state     decoderState
	buf       []byte
	commandID byte
	requestID uint16
	length    int
}

// Feed appends newly read bytes and returns every Command fully decoded so
// far.
func (d *Decoder) Feed(data []byte) []Command {
	d.buf = append(d.buf, data...)
	var out []Command
	for {
		cmd, ok := d.step()
		if !ok {
			break
		}
		out = append(out, cmd)
	}
	return out
}

func (d *Decoder) step() (Command, bool) {
	switch d.state {
	case stateWaitingForMagic:
		idx := bytes.Index(d.buf, magic)
		if idx < 0 {
			if len(d.buf) > len(magic) {
				d.buf = d.buf[len(d.buf)-len(magic):]
			}
			return Command{}, false
		}
		d.buf = d.buf[idx+len(magic):]
		d.state = stateWaitingForCommandID
		return d.step()
	case stateWaitingForCommandID:
		if len(d.buf) < 1 {
			return Command{}, false
		}
		d.commandID = d.buf[0]
		d.buf = d.buf[1:]
		d.state = stateWaitingForRequestID
		return d.step()
	case stateWaitingForRequestID:
		if len(d.buf) < 2 {
			return Command{}, false
		}
		d.requestID = binary.BigEndian.Uint16(d.buf)
		d.buf = d.buf[2:]
		d.state = stateWaitingForLength
		return d.step()
	case stateWaitingForLength:
		if len(d.buf) < 2 {
			return Command{}, false
		}
		d.length = int(binary.BigEndian.Uint16(d.buf))
		d.buf = d.buf[2:]
		d.state = stateWaitingForData
		return d.step()
	case stateWaitingForData:
		if len(d.buf) < d.length {
			return Command{}, false
		}
		data := append([]byte(nil), d.buf[:d.length]...)
		d.buf = d.buf[d.length:]
		d.state = stateWaitingForMagic
		return Command{CommandID: d.commandID, RequestID: d.requestID, Data: data}, true
	default:
		return Command{}, false
	}
}
