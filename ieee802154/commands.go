package ieee802154

import "bytes"

// Command command-id tags, as placed in the single octet following the
// FrameControl/addressing fields of a Command frame.
const (
	CommandIDAssociationRequest  uint8 = 0x01
	CommandIDAssociationResponse uint8 = 0x02
	CommandIDDataRequest         uint8 = 0x04
	CommandIDBeaconRequest       uint8 = 0x07
)

// Command is the nested tagged union carried by Command frames.
type Command interface {
	CommandID() uint8
	encode(buf *bytes.Buffer)
}

// CapabilityInformation is the association-request capability byte.
type CapabilityInformation struct {
	AlternatePANCoordinator bool
	FFD                     bool // device type: full- vs reduced-function device
	MainsPowered            bool
	ReceiverOnWhenIdle      bool
	SecurityCapable         bool
	AllocateAddress         bool
}

func (c CapabilityInformation) pack() byte {
	var b byte
	if c.AlternatePANCoordinator {
		b |= 1 << 0
	}
	if c.FFD {
		b |= 1 << 1
	}
	if c.MainsPowered {
		b |= 1 << 2
	}
	if c.ReceiverOnWhenIdle {
		b |= 1 << 3
	}
	if c.SecurityCapable {
		b |= 1 << 6
	}
	if c.AllocateAddress {
		b |= 1 << 7
	}
	return b
}

func unpackCapabilityInformation(b byte) CapabilityInformation {
	return CapabilityInformation{
		AlternatePANCoordinator: b&(1<<0) != 0,
		FFD:                     b&(1<<1) != 0,
		MainsPowered:            b&(1<<2) != 0,
		ReceiverOnWhenIdle:      b&(1<<3) != 0,
		SecurityCapable:         b&(1<<6) != 0,
		AllocateAddress:         b&(1<<7) != 0,
	}
}

// AssociationRequestCommand is sent by a joining device to its prospective
// coordinator.
type AssociationRequestCommand struct {
	Capability CapabilityInformation
}

func (AssociationRequestCommand) CommandID() uint8 { return CommandIDAssociationRequest }
func (c AssociationRequestCommand) encode(buf *bytes.Buffer) {
	buf.WriteByte(c.Capability.pack())
}

// AssociationStatus is the extended status octet of an AssociationResponse.
// The zero value is success.
type AssociationStatus uint8

const (
	AssociationSuccess         AssociationStatus = 0
	AssociationPANAtCapacity   AssociationStatus = 1
	AssociationPANAccessDenied AssociationStatus = 2
	AssociationHoppingSeqDup   AssociationStatus = 3
)

func associationStatusFromTag(tag byte) (AssociationStatus, error) {
	switch tag {
	case 0, 1, 2, 3:
		return AssociationStatus(tag), nil
	default:
		return 0, errUnexpectedData("association status byte out of range")
	}
}

// AssociationResponseCommand is sent by a coordinator in reply to an
// AssociationRequestCommand.
type AssociationResponseCommand struct {
	ShortAddress ShortAddress
	Status       AssociationStatus
}

func (AssociationResponseCommand) CommandID() uint8 { return CommandIDAssociationResponse }
func (c AssociationResponseCommand) encode(buf *bytes.Buffer) {
	writeUint16LE(buf, uint16(c.ShortAddress))
	buf.WriteByte(byte(c.Status))
}

// DataRequestCommand is sent by a device to poll its coordinator for
// indirectly queued data.
type DataRequestCommand struct{}

func (DataRequestCommand) CommandID() uint8      { return CommandIDDataRequest }
func (DataRequestCommand) encode(*bytes.Buffer) {}

// BeaconRequestCommand solicits a beacon from any coordinator in range.
type BeaconRequestCommand struct{}

func (BeaconRequestCommand) CommandID() uint8      { return CommandIDBeaconRequest }
func (BeaconRequestCommand) encode(*bytes.Buffer) {}

func decodeCommand(data []byte) (Command, error) {
	if len(data) < 1 {
		return nil, errNotEnoughData()
	}
	id, rest := data[0], data[1:]
	switch id {
	case CommandIDAssociationRequest:
		if len(rest) < 1 {
			return nil, errNotEnoughData()
		}
		return AssociationRequestCommand{Capability: unpackCapabilityInformation(rest[0])}, nil
	case CommandIDAssociationResponse:
		if len(rest) < 3 {
			return nil, errNotEnoughData()
		}
		status, err := associationStatusFromTag(rest[2])
		if err != nil {
			return nil, err
		}
		return AssociationResponseCommand{
			ShortAddress: ShortAddress(readUint16LE(rest)),
			Status:       status,
		}, nil
	case CommandIDDataRequest:
		return DataRequestCommand{}, nil
	case CommandIDBeaconRequest:
		return BeaconRequestCommand{}, nil
	default:
		return nil, errInvalidEnumTag("unsupported command id")
	}
}
