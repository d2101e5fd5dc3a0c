package radiobridge

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// ErrLinkClosed is returned/logged when the serial reader goroutine hits
// EOF or an I/O error; the radio link is considered fatal at that point
// (SPEC_FULL.md §7).
var ErrLinkClosed = errors.New("radiobridge: link closed")

// OpenSerial opens the coprocessor's serial port, matching the teacher's
// npi_phy.go NewSerialPHY.
func OpenSerial(path string, baud uint) (io.ReadWriteCloser, error) {
	options := serial.OpenOptions{
		PortName:        path,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
	return serial.Open(options)
}

const readChunkSize = 256

// phyReader continuously reads raw bytes from port, decodes Commands and
// pushes them to out, until a read error or Close. Grounded on the
// teacher's npiPhyReader.
func phyReader(port io.Reader, out chan<- Command, closed chan<- error, logger *log.Logger) {
	var dec Decoder
	buf := make([]byte, readChunkSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			for _, cmd := range dec.Feed(buf[:n]) {
				out <- cmd
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Printf("radiobridge: serial read error: %v", err)
			}
			closed <- ErrLinkClosed
			return
		}
	}
}

// phyWriter serializes Commands from in and writes them whole to port.
// Grounded on the teacher's npiPhyWriter.
func phyWriter(port io.Writer, in <-chan Command, logger *log.Logger) {
	for cmd := range in {
		if _, err := port.Write(cmd.Encode()); err != nil {
			logger.Printf("radiobridge: serial write error: %v", err)
		}
	}
}

// ctrlTimeout is how long a typed request waits for an Ok/Err reply before
// giving up, matching the teacher's 3-second Ctrl timeout.
const ctrlTimeout = 3 * time.Second

// CtrlTimeout is returned when a request does not receive a reply in time.
type CtrlTimeout struct{ CommandID byte }

func (e *CtrlTimeout) Error() string {
	return "radiobridge: timed out waiting for reply to command"
}
