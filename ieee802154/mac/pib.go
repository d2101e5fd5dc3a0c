package mac

import (
	"math/rand"
	"time"

	"github.com/frans-willem/hostmac/ieee802154"
)

// PIBProperty names one attribute of the PAN Information Base. Only the
// properties consumed by this implementation of 802.15.4-2015 8.4 are
// enumerated.
type PIBProperty int

const (
	MacExtendedAddress PIBProperty = iota
	MacAssociatedPanCoord
	MacAssociationPermit
	MacBeaconPayload
	MacBsn
	MacDsn
	MacPanId
	MacShortAddress
	MacBeaconAutoRespond
	MacTransactionPersistenceTime
	MacMaxFrameRetries
	PhyCurrentChannel
	PhyMaxTxPower
	PhyTxPower
)

// AssociatedPanCoord holds the extended+short address pair of the
// coordinator this device is associated with.
type AssociatedPanCoord struct {
	Extended ieee802154.ExtendedAddress
	Short    ieee802154.ShortAddress
}

// PIBValue is a typed PIB attribute value. Exactly one field beyond Kind is
// meaningful for a given value of Kind, mirroring the ExtEnum/PackTagged
// split described for the frame codec.
type PIBValue struct {
	kind                 pibValueKind
	boolVal              bool
	u8Val                uint8
	u16Val               uint16
	blobVal              []byte
	shortVal             ieee802154.ShortAddress
	extendedVal          ieee802154.ExtendedAddress
	panVal               ieee802154.PANID
	durationVal          time.Duration
	associatedCoordVal   *AssociatedPanCoord
}

type pibValueKind int

const (
	kindBool pibValueKind = iota
	kindU8
	kindU16
	kindBlob
	kindShortAddress
	kindExtendedAddress
	kindPANID
	kindDuration
	kindAssociatedPanCoord
)

func boolValue(v bool) PIBValue                    { return PIBValue{kind: kindBool, boolVal: v} }
func u8Value(v uint8) PIBValue                      { return PIBValue{kind: kindU8, u8Val: v} }
func u16Value(v uint16) PIBValue                    { return PIBValue{kind: kindU16, u16Val: v} }
func blobValue(v []byte) PIBValue                   { return PIBValue{kind: kindBlob, blobVal: v} }
func shortAddressValue(v ieee802154.ShortAddress) PIBValue {
	return PIBValue{kind: kindShortAddress, shortVal: v}
}
func extendedAddressValue(v ieee802154.ExtendedAddress) PIBValue {
	return PIBValue{kind: kindExtendedAddress, extendedVal: v}
}
func panIDValue(v ieee802154.PANID) PIBValue { return PIBValue{kind: kindPANID, panVal: v} }
func durationValue(v time.Duration) PIBValue { return PIBValue{kind: kindDuration, durationVal: v} }
func associatedPanCoordValue(v *AssociatedPanCoord) PIBValue {
	return PIBValue{kind: kindAssociatedPanCoord, associatedCoordVal: v}
}

// NewBoolValue, NewU8Value and friends let callers outside this package
// (e.g. Service.Set callers) build the PIBValue a given PIBProperty expects.
func NewBoolValue(v bool) PIBValue                               { return boolValue(v) }
func NewU8Value(v uint8) PIBValue                                { return u8Value(v) }
func NewU16Value(v uint16) PIBValue                               { return u16Value(v) }
func NewBlobValue(v []byte) PIBValue                              { return blobValue(v) }
func NewShortAddressValue(v ieee802154.ShortAddress) PIBValue     { return shortAddressValue(v) }
func NewExtendedAddressValue(v ieee802154.ExtendedAddress) PIBValue {
	return extendedAddressValue(v)
}
func NewPANIDValue(v ieee802154.PANID) PIBValue       { return panIDValue(v) }
func NewDurationValue(v time.Duration) PIBValue       { return durationValue(v) }

func (v PIBValue) AsBool() (bool, bool)       { return v.boolVal, v.kind == kindBool }
func (v PIBValue) AsU8() (uint8, bool)        { return v.u8Val, v.kind == kindU8 }
func (v PIBValue) AsU16() (uint16, bool)      { return v.u16Val, v.kind == kindU16 }
func (v PIBValue) AsBlob() ([]byte, bool)     { return v.blobVal, v.kind == kindBlob }
func (v PIBValue) AsShortAddress() (ieee802154.ShortAddress, bool) {
	return v.shortVal, v.kind == kindShortAddress
}
func (v PIBValue) AsExtendedAddress() (ieee802154.ExtendedAddress, bool) {
	return v.extendedVal, v.kind == kindExtendedAddress
}
func (v PIBValue) AsPANID() (ieee802154.PANID, bool) { return v.panVal, v.kind == kindPANID }
func (v PIBValue) AsDuration() (time.Duration, bool) {
	return v.durationVal, v.kind == kindDuration
}
func (v PIBValue) AsAssociatedPanCoord() (*AssociatedPanCoord, bool) {
	return v.associatedCoordVal, v.kind == kindAssociatedPanCoord
}

const defaultTransactionPersistenceTime = 5 * time.Minute
const defaultMaxFrameRetries = 3

// PIB is the PAN Information Base: the MAC's attribute store.
type PIB struct {
	macExtendedAddress            ieee802154.ExtendedAddress
	macAssociatedPanCoord         *AssociatedPanCoord
	macAssociationPermit          bool
	macBeaconPayload              []byte
	macBsn                        uint8
	macDsn                        uint8
	macPanId                      ieee802154.PANID
	macShortAddress               ieee802154.ShortAddress
	macBeaconAutoRespond          bool
	macTransactionPersistenceTime time.Duration
	macMaxFrameRetries            uint16
	phyCurrentChannel             uint16
	phyMaxTxPower                 uint16
	phyTxPower                    uint16
}

// NewPIB constructs a PIB with compiled-in defaults for everything except
// the arguments given, which are permanent properties of the radio/identity.
func NewPIB(extendedAddress ieee802154.ExtendedAddress, currentChannel uint16, maxTxPower uint16) *PIB {
	return &PIB{
		macExtendedAddress:            extendedAddress,
		macAssociatedPanCoord:         nil,
		macAssociationPermit:          false,
		macBeaconPayload:              nil,
		macBsn:                        uint8(rand.Intn(256)),
		macDsn:                        uint8(rand.Intn(256)),
		macPanId:                      0xFFFF,
		macShortAddress:               0xFFFF,
		macBeaconAutoRespond:          false,
		macTransactionPersistenceTime: defaultTransactionPersistenceTime,
		macMaxFrameRetries:            defaultMaxFrameRetries,
		phyCurrentChannel:             currentChannel,
		phyMaxTxPower:                 maxTxPower,
		phyTxPower:                    maxTxPower,
	}
}

// Reset restores every mutable attribute to its compiled-in default while
// preserving the extended address, current channel and current TX power.
func (p *PIB) Reset() {
	*p = *NewPIB(p.macExtendedAddress, p.phyCurrentChannel, p.phyTxPower)
}

// Get returns the typed value of attr, or UnsupportedAttribute.
func (p *PIB) Get(attr PIBProperty) (PIBValue, error) {
	switch attr {
	case MacExtendedAddress:
		return extendedAddressValue(p.macExtendedAddress), nil
	case MacAssociatedPanCoord:
		return associatedPanCoordValue(p.macAssociatedPanCoord), nil
	case MacAssociationPermit:
		return boolValue(p.macAssociationPermit), nil
	case MacBeaconPayload:
		return blobValue(append([]byte(nil), p.macBeaconPayload...)), nil
	case MacBsn:
		return u8Value(p.macBsn), nil
	case MacDsn:
		return u8Value(p.macDsn), nil
	case MacPanId:
		return panIDValue(p.macPanId), nil
	case MacShortAddress:
		return shortAddressValue(p.macShortAddress), nil
	case MacBeaconAutoRespond:
		return boolValue(p.macBeaconAutoRespond), nil
	case MacTransactionPersistenceTime:
		return durationValue(p.macTransactionPersistenceTime), nil
	case MacMaxFrameRetries:
		return u16Value(p.macMaxFrameRetries), nil
	case PhyCurrentChannel:
		return u16Value(p.phyCurrentChannel), nil
	case PhyMaxTxPower:
		return u16Value(p.phyMaxTxPower), nil
	case PhyTxPower:
		return u16Value(p.phyTxPower), nil
	default:
		return PIBValue{}, &StatusError{Status: UnsupportedAttribute}
	}
}

// Set validates and applies val to attr. It does not propagate the change
// to the radio; that is the service's responsibility (SPEC_FULL.md §4.7).
func (p *PIB) Set(attr PIBProperty, val PIBValue) error {
	switch attr {
	case MacExtendedAddress:
		return &StatusError{Status: ReadOnly}
	case MacAssociationPermit:
		b, ok := val.AsBool()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macAssociationPermit = b
	case MacBeaconPayload:
		blob, ok := val.AsBlob()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macBeaconPayload = blob
	case MacBsn:
		v, ok := val.AsU8()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macBsn = v
	case MacDsn:
		v, ok := val.AsU8()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macDsn = v
	case MacPanId:
		v, ok := val.AsPANID()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macPanId = v
	case MacShortAddress:
		v, ok := val.AsShortAddress()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macShortAddress = v
	case MacBeaconAutoRespond:
		v, ok := val.AsBool()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macBeaconAutoRespond = v
	case MacTransactionPersistenceTime:
		v, ok := val.AsDuration()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macTransactionPersistenceTime = v
	case MacMaxFrameRetries:
		v, ok := val.AsU16()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.macMaxFrameRetries = v
	case PhyCurrentChannel:
		v, ok := val.AsU16()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.phyCurrentChannel = v
	case PhyMaxTxPower:
		v, ok := val.AsU16()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.phyMaxTxPower = v
	case PhyTxPower:
		v, ok := val.AsU16()
		if !ok {
			return &StatusError{Status: InvalidParameter}
		}
		p.phyTxPower = v
	default:
		return &StatusError{Status: UnsupportedAttribute}
	}
	return nil
}

// NextBeaconSequenceNr returns the current beacon sequence number and
// increments the counter modulo 256.
func (p *PIB) NextBeaconSequenceNr() uint8 {
	ret := p.macBsn
	p.macBsn++
	return ret
}

// NextDataSequenceNr returns the current data sequence number and
// increments the counter modulo 256.
func (p *PIB) NextDataSequenceNr() uint8 {
	ret := p.macDsn
	p.macDsn++
	return ret
}

// MaxFrameRetries is a convenience accessor used by the DeviceQueue/MacQueue
// to initialize retries_left on a newly enqueued entry.
func (p *PIB) MaxFrameRetries() uint16 { return p.macMaxFrameRetries }

// TransactionPersistenceTime is a convenience accessor used to compute an
// entry's transaction_deadline.
func (p *PIB) TransactionPersistenceTime() time.Duration {
	return p.macTransactionPersistenceTime
}

// ShortAddress is a convenience accessor for the MAC's own short address.
func (p *PIB) ShortAddress() ieee802154.ShortAddress { return p.macShortAddress }

// PanId is a convenience accessor for the MAC's own PAN id.
func (p *PIB) PanId() ieee802154.PANID { return p.macPanId }

// ExtendedAddress is a convenience accessor for the MAC's own extended
// address.
func (p *PIB) ExtendedAddress() ieee802154.ExtendedAddress { return p.macExtendedAddress }
