package ieee802154

import "bytes"

// frameTypeTag values, the 3-bit frame_type field of FrameControl.
const (
	frameTypeBeacon       uint8 = 0
	frameTypeData         uint8 = 1
	frameTypeAck          uint8 = 2
	frameTypeCommand      uint8 = 3
	frameTypeReserved     uint8 = 4
	frameTypeMultipurpose uint8 = 5
	frameTypeFragment     uint8 = 6
	frameTypeExtended     uint8 = 7
)

const frameVersion = 0 // frame_version field emitted on every encode; decode ignores it

// FrameType is the tagged union carried by a Frame: {Beacon, Data, Ack,
// Command, Reserved, Multipurpose, Fragment, Extended}.
type FrameType interface {
	tag() uint8
	encode(buf *bytes.Buffer)
}

// BeaconFrameType carries a Beacon body.
type BeaconFrameType struct{ Beacon Beacon }

func (BeaconFrameType) tag() uint8 { return frameTypeBeacon }
func (f BeaconFrameType) encode(buf *bytes.Buffer) { f.Beacon.encode(buf) }

// DataFrameType carries a raw MSDU payload.
type DataFrameType struct{ Payload []byte }

func (DataFrameType) tag() uint8 { return frameTypeData }
func (f DataFrameType) encode(buf *bytes.Buffer) { buf.Write(f.Payload) }

// AckFrameType carries the raw octets (if any) that follow the common frame
// fields of an Ack frame.
type AckFrameType struct{ Payload []byte }

func (AckFrameType) tag() uint8 { return frameTypeAck }
func (f AckFrameType) encode(buf *bytes.Buffer) { buf.Write(f.Payload) }

// CommandFrameType carries a nested Command.
type CommandFrameType struct{ Command Command }

func (CommandFrameType) tag() uint8 { return frameTypeCommand }
func (f CommandFrameType) encode(buf *bytes.Buffer) {
	buf.WriteByte(f.Command.CommandID())
	f.Command.encode(buf)
}

// ReservedFrameType, MultipurposeFrameType, FragmentFrameType and
// ExtendedFrameType all carry a raw octet sequence; the 802.15.4-2015
// subset implemented here does not interpret their contents.
type ReservedFrameType struct{ Payload []byte }

func (ReservedFrameType) tag() uint8 { return frameTypeReserved }
func (f ReservedFrameType) encode(buf *bytes.Buffer) { buf.Write(f.Payload) }

type MultipurposeFrameType struct{ Payload []byte }

func (MultipurposeFrameType) tag() uint8 { return frameTypeMultipurpose }
func (f MultipurposeFrameType) encode(buf *bytes.Buffer) { buf.Write(f.Payload) }

type FragmentFrameType struct{ Payload []byte }

func (FragmentFrameType) tag() uint8 { return frameTypeFragment }
func (f FragmentFrameType) encode(buf *bytes.Buffer) { buf.Write(f.Payload) }

type ExtendedFrameType struct{ Payload []byte }

func (ExtendedFrameType) tag() uint8 { return frameTypeExtended }
func (f ExtendedFrameType) encode(buf *bytes.Buffer) { buf.Write(f.Payload) }

// Frame is the logical record decoded from, or to be encoded to, an
// on-air 802.15.4 frame.
type Frame struct {
	FramePending       bool
	AcknowledgeRequest bool
	SequenceNumber     *uint8 // nil iff sequence-number-suppression is set
	Destination        *FullAddress
	Source             *FullAddress
	Type               FrameType
}

func addressingModeOf(a *FullAddress) AddressingMode {
	if a == nil {
		return AddressingModeNone
	}
	return a.Address.Mode
}

func panIDCompression(f *Frame) bool {
	return f.Destination != nil && f.Source != nil && f.Destination.PANID == f.Source.PANID
}

// Encode serializes f to its on-air byte representation.
func (f *Frame) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	compress := panIDCompression(f)

	fc := uint16(f.Type.tag() & 0x7)
	if f.FramePending {
		fc |= 1 << 4
	}
	if f.AcknowledgeRequest {
		fc |= 1 << 5
	}
	if compress {
		fc |= 1 << 6
	}
	if f.SequenceNumber == nil {
		fc |= 1 << 8
	}
	fc |= uint16(addressingModeOf(f.Destination)&0x3) << 10
	fc |= uint16(frameVersion&0x3) << 12
	fc |= uint16(addressingModeOf(f.Source)&0x3) << 14
	writeUint16LE(buf, fc)

	if f.SequenceNumber != nil {
		buf.WriteByte(*f.SequenceNumber)
	}

	if f.Destination != nil && f.Destination.Address.Mode != AddressingModeNone {
		writeUint16LE(buf, uint16(f.Destination.PANID))
		if err := encodeAddress(buf, f.Destination.Address); err != nil {
			return nil, err
		}
	}
	if f.Source != nil && f.Source.Address.Mode != AddressingModeNone {
		if !compress {
			writeUint16LE(buf, uint16(f.Source.PANID))
		}
		if err := encodeAddress(buf, f.Source.Address); err != nil {
			return nil, err
		}
	}

	f.Type.encode(buf)
	return buf.Bytes(), nil
}

func encodeAddress(buf *bytes.Buffer, a Address) error {
	switch a.Mode {
	case AddressingModeShort:
		writeUint16LE(buf, uint16(a.Short))
		return nil
	case AddressingModeExtended:
		writeUint64LE(buf, uint64(a.Extended))
		return nil
	default:
		return errUnexpectedData("cannot encode reserved addressing mode")
	}
}

func decodeAddress(data []byte, mode AddressingMode) (Address, []byte, error) {
	switch mode {
	case AddressingModeNone:
		return NoAddress(), data, nil
	case AddressingModeReserved:
		return Address{}, nil, errUnexpectedData("reserved addressing mode")
	case AddressingModeShort:
		if len(data) < 2 {
			return Address{}, nil, errNotEnoughData()
		}
		return ShortAddr(ShortAddress(readUint16LE(data))), data[2:], nil
	case AddressingModeExtended:
		if len(data) < 8 {
			return Address{}, nil, errNotEnoughData()
		}
		return ExtendedAddr(ExtendedAddress(readUint64LE(data))), data[8:], nil
	default:
		return Address{}, nil, errInvalidEnumTag("addressing mode")
	}
}

// DecodeFrame parses data as one whole Frame. Every byte after the
// addressing fields belongs to the frame body; no trailing bytes are
// returned.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 2 {
		return nil, errNotEnoughData()
	}
	fc := readUint16LE(data)
	data = data[2:]

	frameType := uint8(fc & 0x7)
	securityEnabled := fc&(1<<3) != 0
	framePending := fc&(1<<4) != 0
	ackRequest := fc&(1<<5) != 0
	compress := fc&(1<<6) != 0
	seqSuppressed := fc&(1<<8) != 0
	infoElements := fc&(1<<9) != 0
	destMode := AddressingMode((fc >> 10) & 0x3)
	srcMode := AddressingMode((fc >> 14) & 0x3)

	if securityEnabled {
		return nil, errUnimplemented("security-enabled frames")
	}
	if infoElements {
		return nil, errUnimplemented("information-elements-present frames")
	}

	f := &Frame{FramePending: framePending, AcknowledgeRequest: ackRequest}

	if !seqSuppressed {
		if len(data) < 1 {
			return nil, errNotEnoughData()
		}
		sn := data[0]
		f.SequenceNumber = &sn
		data = data[1:]
	}

	if destMode != AddressingModeNone {
		if len(data) < 2 {
			return nil, errNotEnoughData()
		}
		pan := PANID(readUint16LE(data))
		data = data[2:]
		addr, rest, err := decodeAddress(data, destMode)
		if err != nil {
			return nil, err
		}
		data = rest
		f.Destination = &FullAddress{PANID: pan, Address: addr}
	}

	if srcMode != AddressingModeNone {
		var pan PANID
		if compress {
			if f.Destination == nil {
				return nil, errUnexpectedData("pan_id_compression without destination")
			}
			pan = f.Destination.PANID
		} else {
			if len(data) < 2 {
				return nil, errNotEnoughData()
			}
			pan = PANID(readUint16LE(data))
			data = data[2:]
		}
		addr, rest, err := decodeAddress(data, srcMode)
		if err != nil {
			return nil, err
		}
		data = rest
		f.Source = &FullAddress{PANID: pan, Address: addr}
	}

	body, err := decodeFrameType(frameType, data)
	if err != nil {
		return nil, err
	}
	f.Type = body
	return f, nil
}

func decodeFrameType(tag uint8, data []byte) (FrameType, error) {
	switch tag {
	case frameTypeBeacon:
		b, err := decodeBeacon(data)
		if err != nil {
			return nil, err
		}
		return BeaconFrameType{Beacon: b}, nil
	case frameTypeData:
		return DataFrameType{Payload: append([]byte(nil), data...)}, nil
	case frameTypeAck:
		return AckFrameType{Payload: append([]byte(nil), data...)}, nil
	case frameTypeCommand:
		cmd, err := decodeCommand(data)
		if err != nil {
			return nil, err
		}
		return CommandFrameType{Command: cmd}, nil
	case frameTypeReserved:
		return ReservedFrameType{Payload: append([]byte(nil), data...)}, nil
	case frameTypeMultipurpose:
		return MultipurposeFrameType{Payload: append([]byte(nil), data...)}, nil
	case frameTypeFragment:
		return FragmentFrameType{Payload: append([]byte(nil), data...)}, nil
	case frameTypeExtended:
		return ExtendedFrameType{Payload: append([]byte(nil), data...)}, nil
	default:
		return nil, errInvalidEnumTag("frame type")
	}
}

// CreateAck builds the minimal Ack frame for f if f requested one, or
// returns nil if not.
func CreateAck(f *Frame) *Frame {
	if !f.AcknowledgeRequest {
		return nil
	}
	return &Frame{
		SequenceNumber: f.SequenceNumber,
		Type:           AckFrameType{},
	}
}
