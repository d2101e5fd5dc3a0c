package ieee802154

import "bytes"

// Beacon carries the superframe specification and beacon payload of a
// Beacon frame. GTS and pending-address fields are always emitted as zero
// and rejected as unimplemented on decode if non-zero.
type Beacon struct {
	BeaconOrder           uint8 // 4 bits
	SuperframeOrder       uint8 // 4 bits
	FinalCapSlot          uint8 // 4 bits
	BatteryLifeExtension  bool
	PanCoordinator        bool
	AssociationPermit     bool
	Payload               []byte
}

func (b Beacon) superframeSpecification() uint16 {
	v := uint16(b.BeaconOrder&0xF) | uint16(b.SuperframeOrder&0xF)<<4 | uint16(b.FinalCapSlot&0xF)<<8
	if b.BatteryLifeExtension {
		v |= 1 << 12
	}
	if b.PanCoordinator {
		v |= 1 << 14
	}
	if b.AssociationPermit {
		v |= 1 << 15
	}
	return v
}

func (b Beacon) encode(buf *bytes.Buffer) {
	writeUint16LE(buf, b.superframeSpecification())
	buf.WriteByte(0) // GTS specification, unsupported, always zero
	buf.WriteByte(0) // pending address specification, unsupported, always zero
	buf.Write(b.Payload)
}

func decodeBeacon(data []byte) (Beacon, error) {
	if len(data) < 4 {
		return Beacon{}, errNotEnoughData()
	}
	spec := readUint16LE(data)
	gts := data[2]
	pending := data[3]
	if gts != 0 {
		return Beacon{}, errUnimplemented("non-zero GTS specification")
	}
	if pending != 0 {
		return Beacon{}, errUnimplemented("non-zero pending address specification")
	}
	return Beacon{
		BeaconOrder:          uint8(spec & 0xF),
		SuperframeOrder:      uint8((spec >> 4) & 0xF),
		FinalCapSlot:         uint8((spec >> 8) & 0xF),
		BatteryLifeExtension: spec&(1<<12) != 0,
		PanCoordinator:       spec&(1<<14) != 0,
		AssociationPermit:    spec&(1<<15) != 0,
		Payload:              append([]byte(nil), data[4:]...),
	}, nil
}
