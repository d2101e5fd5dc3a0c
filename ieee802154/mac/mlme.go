package mac

import (
	"time"

	"github.com/frans-willem/hostmac/ieee802154"
)

// BeaconType distinguishes a normal beacon from a beacon requested outside
// the superframe structure.
type BeaconType int

const (
	BeaconTypeNormal BeaconType = iota
	BeaconTypeOnDemand
)

// MLMEResetRequest asks the MAC to reset its state, optionally restoring
// default PIB values. Result is sent exactly once.
type MLMEResetRequest struct {
	SetDefaultPIB bool
	Result        chan<- MLMEResetConfirm
}

// MLMEResetConfirm reports the outcome of an MLMEResetRequest.
type MLMEResetConfirm struct {
	Status Status
}

// MLMEStartRequest asks the MAC to begin operating as a PAN coordinator
// with the given superframe parameters.
type MLMEStartRequest struct {
	PANID               ieee802154.PANID
	ChannelNumber       uint8
	ChannelPage         uint8
	StartTime           uint32
	BeaconOrder         uint8
	SuperframeOrder     uint8
	PanCoordinator      bool
	BatteryLifeExtension bool
	Result              chan<- MLMEStartConfirm
}

// MLMEStartConfirm reports the outcome of an MLMEStartRequest.
type MLMEStartConfirm struct {
	Status Status
}

// MLMEBeaconRequest asks the MAC to transmit a single beacon frame
// immediately, outside the normal superframe schedule.
type MLMEBeaconRequest struct {
	BeaconType      BeaconType
	Channel         uint8
	ChannelPage     uint8
	SuperframeOrder uint8
	DstAddr         *ieee802154.FullAddress
	Result          chan<- MLMEBeaconConfirm
}

// MLMEBeaconConfirm reports the outcome of an MLMEBeaconRequest.
type MLMEBeaconConfirm struct {
	Status Status
}

// MLMEGetRequest reads a single PIB attribute.
type MLMEGetRequest struct {
	Attribute PIBProperty
	Result    chan<- MLMEGetConfirm
}

// MLMEGetConfirm reports the outcome of an MLMEGetRequest.
type MLMEGetConfirm struct {
	Status    Status
	Attribute PIBProperty
	Value     PIBValue
}

// MLMESetRequest writes a single PIB attribute.
type MLMESetRequest struct {
	Attribute PIBProperty
	Value     PIBValue
	Result    chan<- MLMESetConfirm
}

// MLMESetConfirm reports the outcome of an MLMESetRequest.
type MLMESetConfirm struct {
	Status    Status
	Attribute PIBProperty
}

// MLMEAssociateRequest asks the MAC to associate with a coordinator.
type MLMEAssociateRequest struct {
	ChannelNumber  uint8
	ChannelPage    uint8
	CoordAddress   ieee802154.FullAddress
	Capability     ieee802154.CapabilityInformation
	Result         chan<- MLMEAssociateConfirm
}

// MLMEAssociateConfirm reports the outcome of an MLMEAssociateRequest.
type MLMEAssociateConfirm struct {
	AssocShortAddress ieee802154.ShortAddress
	Status            Status
}

// MLMEPollRequest asks the MAC to poll a coordinator for pending data by
// sending a DataRequest command, per SPEC_FULL.md's indirect-transmission
// handling.
type MLMEPollRequest struct {
	CoordAddress ieee802154.FullAddress
	Result       chan<- MLMEPollConfirm
}

// MLMEPollConfirm reports the outcome of an MLMEPollRequest.
type MLMEPollConfirm struct {
	Status Status
}

// MLMEIndication is the tagged union of unsolicited notifications the MAC
// delivers upward.
type MLMEIndication interface{ isMLMEIndication() }

// MLMEBeaconNotifyIndication reports a received beacon frame.
type MLMEBeaconNotifyIndication struct {
	BSN           uint8
	PANDescriptor PANDescriptor
	Beacon        ieee802154.Beacon
}

func (MLMEBeaconNotifyIndication) isMLMEIndication() {}

// PANDescriptor summarizes the superframe/coordinator information carried
// by a beacon, per IEEE 802.15.4 §8.4.2.2.
type PANDescriptor struct {
	CoordAddress    ieee802154.FullAddress
	Channel         uint8
	ChannelPage     uint8
	SuperframeSpec  uint16
	LinkQuality     uint8
	Timestamp       time.Time
}

// MLMEAssociateIndication reports an association request received while
// acting as coordinator.
type MLMEAssociateIndication struct {
	DeviceAddress ieee802154.ExtendedAddress
	Capability    ieee802154.CapabilityInformation
}

func (MLMEAssociateIndication) isMLMEIndication() {}

// MLMECommStatusIndication reports the final disposition of a command
// frame exchange (e.g. an association response delivery).
type MLMECommStatusIndication struct {
	PANID          ieee802154.PANID
	SrcAddr        ieee802154.FullAddress
	DstAddr        ieee802154.FullAddress
	Status         Status
}

func (MLMECommStatusIndication) isMLMEIndication() {}
