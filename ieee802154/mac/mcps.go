package mac

import (
	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/frans-willem/hostmac/uniquekey"
)

// MCPSDataRequest asks the MAC to deliver Msdu to Destination (or to
// broadcast, when Destination is nil). MsduHandle identifies this request
// for the paired MCPSDataConfirm and for a later MCPSPurgeRequest.
type MCPSDataRequest struct {
	SourceAddressingMode ieee802154.AddressingMode
	Destination          *ieee802154.FullAddress
	Msdu                 []byte
	MsduHandle           uniquekey.Key
	AckTx                bool
	IndirectTx           bool
	Result               chan<- MCPSDataConfirm
}

// MCPSDataConfirm reports the final outcome of one MCPSDataRequest, per
// SPEC_FULL.md §4.2's terminal-result contract.
type MCPSDataConfirm struct {
	MsduHandle uniquekey.Key
	AckPayload []byte
	Err        error
}

// MCPSPurgeRequest asks the MAC to cancel the queued/indirect transmission
// named by MsduHandle before it is sent.
type MCPSPurgeRequest struct {
	MsduHandle uniquekey.Key
	Result     chan<- MCPSPurgeConfirm
}

// MCPSPurgeConfirm reports the outcome of an MCPSPurgeRequest.
type MCPSPurgeConfirm struct {
	MsduHandle uniquekey.Key
	Status     Status
}
