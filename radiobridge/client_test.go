package radiobridge

import (
	"io"
	"log"
	"testing"

	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an io.ReadWriteCloser test double: writes are captured whole
// onto a channel (one Command per phyWriter.Write call), reads are served
// from an io.Pipe that the test feeds replies into.
type fakePort struct {
	writes chan []byte
	reader *io.PipeReader
	writer *io.PipeWriter
}

func newFakePort() *fakePort {
	pr, pw := io.Pipe()
	return &fakePort{writes: make(chan []byte, 8), reader: pr, writer: pw}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.writes <- append([]byte(nil), p...)
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) { return f.reader.Read(p) }

func (f *fakePort) Close() error {
	f.writer.Close()
	return nil
}

// nextCommand waits for the next raw write and decodes exactly one Command
// from it.
func nextCommand(t *testing.T, port *fakePort) Command {
	t.Helper()
	raw := <-port.writes
	var d Decoder
	cmds := d.Feed(raw)
	require.Len(t, cmds, 1)
	return cmds[0]
}

func (f *fakePort) reply(cmd Command) {
	f.writer.Write(cmd.Encode())
}

func TestClientSetPendingShortEncodesSlotAndAddress(t *testing.T) {
	port := newFakePort()
	defer port.Close()
	c := NewClient(port, log.New(io.Discard, "", 0))

	short := ieee802154.ShortAddress(0x1234)
	done := make(chan error, 1)
	go func() { done <- c.SetPendingShort(5, ieee802154.PANID(0xABCD), &short) }()

	cmd := nextCommand(t, port)
	assert.Equal(t, CmdSetPending, cmd.CommandID)
	assert.Equal(t, []byte{5, 0xCD, 0xAB, 0x34, 0x12}, cmd.Data)

	port.reply(Command{CommandID: CmdOk, RequestID: cmd.RequestID})
	require.NoError(t, <-done)
}

func TestClientSetPendingShortNilClearsSlot(t *testing.T) {
	port := newFakePort()
	defer port.Close()
	c := NewClient(port, log.New(io.Discard, "", 0))

	done := make(chan error, 1)
	go func() { done <- c.SetPendingShort(2, 0, nil) }()

	cmd := nextCommand(t, port)
	assert.Equal(t, CmdSetPending, cmd.CommandID)
	// Clearing a slot omits the address bytes entirely.
	assert.Equal(t, []byte{2}, cmd.Data)

	port.reply(Command{CommandID: CmdOk, RequestID: cmd.RequestID})
	require.NoError(t, <-done)
}

func TestClientSetPendingExtendedEncodesSlotAndAddress(t *testing.T) {
	port := newFakePort()
	defer port.Close()
	c := NewClient(port, log.New(io.Discard, "", 0))

	extended := ieee802154.ExtendedAddress(0x0011223344556677)
	done := make(chan error, 1)
	go func() { done <- c.SetPendingExtended(3, &extended) }()

	cmd := nextCommand(t, port)
	assert.Equal(t, CmdSetPending, cmd.CommandID)
	// High bit set selects the extended-address slot space; remaining 7
	// bits carry the slot number, followed by the little-endian address.
	assert.Equal(t, []byte{0x83, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00}, cmd.Data)

	port.reply(Command{CommandID: CmdOk, RequestID: cmd.RequestID})
	require.NoError(t, <-done)
}

func TestClientSetPendingExtendedNilClearsSlot(t *testing.T) {
	port := newFakePort()
	defer port.Close()
	c := NewClient(port, log.New(io.Discard, "", 0))

	done := make(chan error, 1)
	go func() { done <- c.SetPendingExtended(3, nil) }()

	cmd := nextCommand(t, port)
	assert.Equal(t, []byte{0x83}, cmd.Data)

	port.reply(Command{CommandID: CmdOk, RequestID: cmd.RequestID})
	require.NoError(t, <-done)
}

func TestClientRequestSurfacesBridgeError(t *testing.T) {
	port := newFakePort()
	defer port.Close()
	c := NewClient(port, log.New(io.Discard, "", 0))

	done := make(chan error, 1)
	go func() { done <- c.On(true) }()

	cmd := nextCommand(t, port)
	assert.Equal(t, CmdOn, cmd.CommandID)

	port.reply(Command{CommandID: CmdErr, RequestID: cmd.RequestID, Data: []byte{0x01}})
	err := <-done
	require.Error(t, err)
	var bridgeErr *BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, []byte{0x01}, bridgeErr.Payload)
}
