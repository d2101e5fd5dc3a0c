package ieee802154

import (
	"bytes"
	"encoding/binary"
)

func writeUint16LE(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint16LE(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func readUint64LE(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
