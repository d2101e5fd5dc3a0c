package ieee802154

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seq(n uint8) *uint8 { return &n }

func TestFrameEncodeDecodeDataFrame(t *testing.T) {
	src := &FullAddress{PANID: 0xBEEF, Address: ShortAddr(0x0001)}
	dst := &FullAddress{PANID: 0xBEEF, Address: ShortAddr(0x0002)}
	f := &Frame{
		AcknowledgeRequest: true,
		SequenceNumber:     seq(42),
		Destination:        dst,
		Source:             src,
		Type:               DataFrameType{Payload: []byte{1, 2, 3, 4}},
	}

	encoded, err := f.Encode()
	require.NoError(t, err)

	decoded, err := DecodeFrame(encoded)
	require.NoError(t, err)

	assert.True(t, decoded.AcknowledgeRequest)
	require.NotNil(t, decoded.SequenceNumber)
	assert.Equal(t, uint8(42), *decoded.SequenceNumber)
	require.NotNil(t, decoded.Destination)
	assert.Equal(t, *dst, *decoded.Destination)
	require.NotNil(t, decoded.Source)
	assert.Equal(t, *src, *decoded.Source)
	assert.Equal(t, DataFrameType{Payload: []byte{1, 2, 3, 4}}, decoded.Type)
}

func TestFrameEncodeDecodePanIDCompression(t *testing.T) {
	pan := PANID(0x1234)
	src := &FullAddress{PANID: pan, Address: ExtendedAddr(0x0011223344556677)}
	dst := &FullAddress{PANID: pan, Address: ShortAddr(0x4242)}
	f := &Frame{
		SequenceNumber: seq(1),
		Destination:    dst,
		Source:         src,
		Type:           DataFrameType{Payload: nil},
	}

	encoded, err := f.Encode()
	require.NoError(t, err)

	decoded, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, pan, decoded.Source.PANID)
	assert.Equal(t, pan, decoded.Destination.PANID)
}

func TestFrameEncodeDecodeSequenceNumberSuppressed(t *testing.T) {
	f := &Frame{Type: DataFrameType{Payload: []byte{0xAA}}}
	encoded, err := f.Encode()
	require.NoError(t, err)

	decoded, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Nil(t, decoded.SequenceNumber)
}

func TestCreateAckRequiresAckRequest(t *testing.T) {
	f := &Frame{SequenceNumber: seq(7)}
	assert.Nil(t, CreateAck(f))

	f.AcknowledgeRequest = true
	ack := CreateAck(f)
	require.NotNil(t, ack)
	assert.Equal(t, uint8(7), *ack.SequenceNumber)
	assert.Equal(t, AckFrameType{}, ack.Type)
}

func TestBeaconFrameRoundTrip(t *testing.T) {
	src := &FullAddress{PANID: 0xCAFE, Address: ShortAddr(0x0001)}
	f := &Frame{
		SequenceNumber: seq(9),
		Source:         src,
		Type: BeaconFrameType{Beacon: Beacon{
			BeaconOrder:       15,
			SuperframeOrder:   15,
			FinalCapSlot:      7,
			PanCoordinator:    true,
			AssociationPermit: true,
			Payload:           []byte{0xDE, 0xAD},
		}},
	}
	encoded, err := f.Encode()
	require.NoError(t, err)
	decoded, err := DecodeFrame(encoded)
	require.NoError(t, err)
	body, ok := decoded.Type.(BeaconFrameType)
	require.True(t, ok)
	assert.True(t, body.Beacon.PanCoordinator)
	assert.True(t, body.Beacon.AssociationPermit)
	assert.Equal(t, []byte{0xDE, 0xAD}, body.Beacon.Payload)
}

// TestFrameRoundTripProperty checks that every Frame built from generated
// addressing/payload combinations survives an Encode/DecodeFrame round
// trip unchanged, the quantified codec invariant from SPEC_FULL.md §8.
func TestFrameRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pan := PANID(rapid.Uint16().Draw(t, "pan"))
		hasDst := rapid.Bool().Draw(t, "hasDst")
		hasSrc := rapid.Bool().Draw(t, "hasSrc")
		useExtended := rapid.Bool().Draw(t, "useExtended")
		payload := rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(t, "payload")
		hasSeq := rapid.Bool().Draw(t, "hasSeq")

		f := &Frame{Type: DataFrameType{Payload: payload}}
		if hasSeq {
			n := rapid.Uint8().Draw(t, "seq")
			f.SequenceNumber = &n
		}
		addrFor := func(label string) Address {
			if useExtended {
				return ExtendedAddr(ExtendedAddress(rapid.Uint64().Draw(t, label)))
			}
			return ShortAddr(ShortAddress(rapid.Uint16().Draw(t, label)))
		}
		if hasDst {
			f.Destination = &FullAddress{PANID: pan, Address: addrFor("dst")}
		}
		if hasSrc {
			srcPan := pan
			if !hasDst {
				srcPan = PANID(rapid.Uint16().Draw(t, "srcPan"))
			}
			f.Source = &FullAddress{PANID: srcPan, Address: addrFor("src")}
		}

		encoded, err := f.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, err := DecodeFrame(encoded)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if hasSeq {
			if decoded.SequenceNumber == nil || *decoded.SequenceNumber != *f.SequenceNumber {
				t.Fatalf("sequence number mismatch")
			}
		} else if decoded.SequenceNumber != nil {
			t.Fatalf("expected suppressed sequence number")
		}
		if hasDst {
			if decoded.Destination == nil || *decoded.Destination != *f.Destination {
				t.Fatalf("destination mismatch: %+v != %+v", decoded.Destination, f.Destination)
			}
		}
		if hasSrc {
			if decoded.Source == nil || *decoded.Source != *f.Source {
				t.Fatalf("source mismatch: %+v != %+v", decoded.Source, f.Source)
			}
		}
		body, ok := decoded.Type.(DataFrameType)
		if !ok {
			t.Fatalf("expected DataFrameType, got %T", decoded.Type)
		}
		if len(body.Payload) != len(payload) {
			t.Fatalf("payload length mismatch")
		}
	})
}
