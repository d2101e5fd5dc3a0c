// Package ieee802154 implements the frame codec subset of the IEEE
// 802.15.4-2015 Medium Access Control sublayer used by the MAC coordinator
// in package mac.
package ieee802154

import "fmt"

// ShortAddress is a 16-bit 802.15.4 address. 0xFFFF means broadcast or "no
// address assigned"; 0xFFFE means "invalid, pending association".
type ShortAddress uint16

const (
	BroadcastShortAddress ShortAddress = 0xFFFF
	PendingShortAddress   ShortAddress = 0xFFFE
)

func (a ShortAddress) String() string {
	return fmt.Sprintf("%#04x", uint16(a))
}

// ExtendedAddress is a 64-bit 802.15.4 address (the IEEE EUI-64).
type ExtendedAddress uint64

func (a ExtendedAddress) String() string {
	return fmt.Sprintf("%#016x", uint64(a))
}

// PANID is a 16-bit PAN identifier.
type PANID uint16

func (p PANID) String() string {
	return fmt.Sprintf("%#04x", uint16(p))
}

// AddressingMode is the 2-bit addressing-mode tag used on the wire to select
// between no address, a reserved (unsupported) form, a short address or an
// extended address.
type AddressingMode uint8

const (
	AddressingModeNone     AddressingMode = 0
	AddressingModeReserved AddressingMode = 1
	AddressingModeShort    AddressingMode = 2
	AddressingModeExtended AddressingMode = 3
)

// Address is a tagged union over {none, short, extended}. The zero value is
// the "none" address.
type Address struct {
	Mode     AddressingMode
	Short    ShortAddress
	Extended ExtendedAddress
}

// NoAddress returns the "no address" Address.
func NoAddress() Address {
	return Address{Mode: AddressingModeNone}
}

// ShortAddr wraps a ShortAddress as an Address.
func ShortAddr(a ShortAddress) Address {
	return Address{Mode: AddressingModeShort, Short: a}
}

// ExtendedAddr wraps an ExtendedAddress as an Address.
func ExtendedAddr(a ExtendedAddress) Address {
	return Address{Mode: AddressingModeExtended, Extended: a}
}

func (a Address) String() string {
	switch a.Mode {
	case AddressingModeNone:
		return "none"
	case AddressingModeShort:
		return a.Short.String()
	case AddressingModeExtended:
		return a.Extended.String()
	default:
		return "reserved"
	}
}

// FullAddress pairs a PANID with an Address. A nil *FullAddress stands for
// "absent" in frame source/destination fields.
type FullAddress struct {
	PANID   PANID
	Address Address
}
