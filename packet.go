package reliant

import "hash/crc32"

// Flags identify a packet's role on the wire. DATA and the control flags are
// mutually exclusive in practice even though the field is a bitset.
const (
	FlagData uint8 = 0x01
	FlagAck  uint8 = 0x02
	FlagSyn  uint8 = 0x04
	FlagFin  uint8 = 0x08
)

// packetHeaderSize is the fixed on-wire header size: sequence(4) + checksum(4) + flags(1) + payloadLength(2).
const packetHeaderSize = 11

// Header is the logical record carried by every packet, independent of its
// wire encoding.
type Header struct {
	Sequence uint32
	Flags    uint8
}

// EncodePacket lays out sequence, checksum, flags, and payload per the wire
// format and returns the complete encoded packet.
func EncodePacket(sequence uint32, flags uint8, payload []byte) []byte {
	b := newBuffer(packetHeaderSize + len(payload))
	b.writeUint32(sequence)
	checksumPos := b.pos
	b.writeUint32(0) // placeholder, patched below
	b.writeUint8(flags)
	b.writeUint16(uint16(len(payload)))
	b.writeBytes(payload)

	checksum := crc32.ChecksumIEEE(checksumInput(b.buf[:b.pos], checksumPos))
	b.buf[checksumPos] = byte(checksum)
	b.buf[checksumPos+1] = byte(checksum >> 8)
	b.buf[checksumPos+2] = byte(checksum >> 16)
	b.buf[checksumPos+3] = byte(checksum >> 24)

	return b.bytes()
}

// checksumInput returns everything except the 4-byte checksum field at
// checksumPos: sequence ‖ flags ‖ payload_length ‖ payload.
func checksumInput(encoded []byte, checksumPos int) []byte {
	out := make([]byte, 0, len(encoded)-4)
	out = append(out, encoded[:checksumPos]...)
	out = append(out, encoded[checksumPos+4:]...)
	return out
}

// DecodePacket parses an encoded packet, verifying its checksum. Decode
// failure (short input or checksum mismatch) is reported only through ok;
// callers must not ACK or otherwise react to a failed decode.
func DecodePacket(data []byte) (header Header, payload []byte, ok bool) {
	if len(data) < packetHeaderSize {
		return Header{}, nil, false
	}

	b := newBufferFromRef(data)
	sequence, _ := b.getUint32()
	storedChecksum, _ := b.getUint32()
	flags, _ := b.getUint8()
	payloadLength, _ := b.getUint16()

	totalLength := packetHeaderSize + int(payloadLength)
	if len(data) < totalLength {
		return Header{}, nil, false
	}
	payload, _ = b.getBytes(int(payloadLength))

	if crc32.ChecksumIEEE(checksumInput(data[:totalLength], 4)) != storedChecksum {
		return Header{}, nil, false
	}

	return Header{Sequence: sequence, Flags: flags}, payload, true
}

// synPacket is the handshake frame: sequence 0, empty payload.
func synPacket() []byte {
	return EncodePacket(0, FlagSyn, nil)
}

// finPacket is the raw, unsequenced-by-the-engine half of a close.
func finPacket(sequence uint32) []byte {
	return EncodePacket(sequence, FlagFin, nil)
}

// ackPacket carries the sequence being acknowledged.
func ackPacket(sequence uint32) []byte {
	return EncodePacket(sequence, FlagAck, nil)
}
