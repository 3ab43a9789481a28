package mc

import (
	"errors"
	"io"
)

// MaxStringBytes is the largest byte length a protocol string may declare.
const MaxStringBytes = 32767 * 3

var (
	ErrVarIntTooBig   = errors.New("VarInt is too big")
	ErrStringTooLong  = errors.New("string is longer than the protocol allows")
	ErrNegativeLength = errors.New("negative length")
)

type Field interface {
	FieldEncoder
	FieldDecoder
}

type FieldEncoder interface {
	Encode() []byte
}

type FieldDecoder interface {
	Decode(r DecodeReader) error
}

// DecodeReader is what the handshake and login-start decoders read from.
type DecodeReader interface {
	io.ByteReader
	io.Reader
}

type (
	Byte          int8
	UnsignedShort uint16 // big endian on the wire
	String        string // VarInt byte length, then UTF-8
	Chat          = String
	VarInt        int32 // LEB128, at most 5 bytes
)

// ReadNBytes has io.ReadFull semantics: io.EOF on an empty reader, io.ErrUnexpectedEOF on a short one.
func ReadNBytes(r DecodeReader, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	bb := make([]byte, n)
	if _, err := io.ReadFull(r, bb); err != nil {
		return nil, err
	}
	return bb, nil
}

func (s String) Encode() []byte {
	bb := VarInt(len(s)).Encode()
	return append(bb, s...)
}

// Decode rejects declared lengths above MaxStringBytes before allocating.
func (s *String) Decode(r DecodeReader) error {
	var l VarInt
	if err := l.Decode(r); err != nil {
		return err
	}
	if l < 0 {
		return ErrNegativeLength
	}
	if l > MaxStringBytes {
		return ErrStringTooLong
	}

	bb, err := ReadNBytes(r, int(l))
	if err != nil {
		return err
	}

	*s = String(bb)
	return nil
}

func (b Byte) Encode() []byte {
	return []byte{byte(b)}
}

func (b *Byte) Decode(r DecodeReader) error {
	v, err := r.ReadByte()
	if err != nil {
		return err
	}
	*b = Byte(v)
	return nil
}

func (us UnsignedShort) Encode() []byte {
	n := uint16(us)
	return []byte{
		byte(n >> 8),
		byte(n),
	}
}

func (us *UnsignedShort) Decode(r DecodeReader) error {
	bb, err := ReadNBytes(r, 2)
	if err != nil {
		return err
	}

	*us = UnsignedShort(uint16(bb[0])<<8 | uint16(bb[1]))
	return nil
}

// Encode writes negative values as five bytes.
func (v VarInt) Encode() []byte {
	num := uint32(v)
	var bb []byte
	for {
		b := num & 0x7F
		num >>= 7
		if num != 0 {
			b |= 0x80
		}
		bb = append(bb, byte(b))
		if num == 0 {
			break
		}
	}
	return bb
}

func (v *VarInt) Decode(r DecodeReader) error {
	var n uint32
	for i := 0; ; i++ {
		if i >= 5 {
			return ErrVarIntTooBig
		}
		sec, err := r.ReadByte()
		if err != nil {
			return err
		}

		n |= uint32(sec&0x7F) << uint32(7*i)

		if sec&0x80 == 0 {
			break
		}
	}

	*v = VarInt(n)
	return nil
}
