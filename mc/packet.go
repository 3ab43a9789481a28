package mc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidPacketID = errors.New("invalid packet id")
	ErrPacketTooBig    = errors.New("packet contains too much data")
	ErrPacketTooShort  = errors.New("packet length too short")
)

// MaxPacketSize is the largest uncompressed packet the codec will read.
const MaxPacketSize = 2097151

// Packet is the raw representation of message that is send between the client and the server
type Packet struct {
	ID   byte
	Data []byte
}

// Scan decodes and copies the Packet data into the fields
func (pk Packet) Scan(fields ...FieldDecoder) error {
	return ScanFields(bytes.NewReader(pk.Data), fields...)
}

// Marshal encodes the packet with its length prefix
func (pk Packet) Marshal() []byte {
	data := make([]byte, 0, len(pk.Data)+1)
	data = append(data, pk.ID)
	data = append(data, pk.Data...)
	packed := VarInt(int32(len(data))).Encode()
	return append(packed, data...)
}

// ScanFields decodes a byte stream into fields
func ScanFields(r DecodeReader, fields ...FieldDecoder) error {
	for _, field := range fields {
		if err := field.Decode(r); err != nil {
			return err
		}
	}
	return nil
}

// MarshalPacket transforms an ID and Fields into a Packet
func MarshalPacket(id byte, fields ...FieldEncoder) Packet {
	pkt := Packet{ID: id}
	for _, v := range fields {
		pkt.Data = append(pkt.Data, v.Encode()...)
	}
	return pkt
}

// ReadPacketBytes reads one length-prefixed frame and returns its content (id + data)
func ReadPacketBytes(r DecodeReader) ([]byte, error) {
	var packetLength VarInt
	if err := packetLength.Decode(r); err != nil {
		return nil, err
	}

	if packetLength < 1 {
		return nil, ErrPacketTooShort
	}
	if packetLength > MaxPacketSize {
		return nil, ErrPacketTooBig
	}

	data := make([]byte, packetLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("reading the content of the packet failed: %w", err)
	}

	return data, nil
}

// ReadPacket decodes a byte stream and cuts the first Packet out
func ReadPacket(r DecodeReader) (Packet, error) {
	data, err := ReadPacketBytes(r)
	if err != nil {
		return Packet{}, err
	}

	return Packet{
		ID:   data[0],
		Data: data[1:],
	}, nil
}
