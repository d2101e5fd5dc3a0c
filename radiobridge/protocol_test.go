package radiobridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderRoundTripsSingleCommand(t *testing.T) {
	cmd := Command{CommandID: CmdGetValue, RequestID: 7, Data: []byte{1, 2, 3}}
	var d Decoder
	decoded := d.Feed(cmd.Encode())
	require.Len(t, decoded, 1)
	assert.Equal(t, cmd, decoded[0])
}

func TestDecoderHandlesMultipleCommandsInOneChunk(t *testing.T) {
	a := Command{CommandID: CmdOk, RequestID: 1, Data: []byte{0xAA}}
	b := Command{CommandID: CmdErr, RequestID: 2, Data: []byte{0xBB, 0xCC}}
	var chunk []byte
	chunk = append(chunk, a.Encode()...)
	chunk = append(chunk, b.Encode()...)

	var d Decoder
	decoded := d.Feed(chunk)
	require.Len(t, decoded, 2)
	assert.Equal(t, a, decoded[0])
	assert.Equal(t, b, decoded[1])
}

func TestDecoderResyncsAfterGarbagePrefix(t *testing.T) {
	cmd := Command{CommandID: CmdOnPacket, RequestID: 0, Data: []byte{0x01, 0x02}}
	garbage := []byte{0x00, 0xFF, 'Z', 'P', 0xEE} // partial magic, then junk
	var d Decoder
	decoded := d.Feed(append(garbage, cmd.Encode()...))
	require.Len(t, decoded, 1)
	assert.Equal(t, cmd, decoded[0])
}

func TestDecoderFeedByteAtATime(t *testing.T) {
	cmd := Command{CommandID: CmdSetValue, RequestID: 99, Data: []byte{9, 9, 9}}
	encoded := cmd.Encode()

	var d Decoder
	var decoded []Command
	for _, b := range encoded {
		decoded = append(decoded, d.Feed([]byte{b})...)
	}
	require.Len(t, decoded, 1)
	assert.Equal(t, cmd, decoded[0])
}

func TestCommandEncodeClampsOversizedPayload(t *testing.T) {
	data := make([]byte, 0x10000)
	cmd := Command{CommandID: CmdSend, Data: data}
	encoded := cmd.Encode()
	// magic(3) + commandID(1) + requestID(2) + length(2) + 0xFFFF payload
	assert.Equal(t, 3+1+2+2+0xFFFF, len(encoded))
}
