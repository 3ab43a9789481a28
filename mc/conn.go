package mc

import (
	"bufio"
	"net"
)

type McConn interface {
	ReadPacket() (Packet, error)
	WritePacket(p Packet) error
}

func NewMcConn(conn net.Conn) mcConn {
	return mcConn{
		netConn: conn,
		reader:  bufio.NewReader(conn),
	}
}

type mcConn struct {
	netConn net.Conn
	reader  DecodeReader
}

func (conn mcConn) ReadPacket() (Packet, error) {
	return ReadPacket(conn.reader)
}

func (conn mcConn) WritePacket(p Packet) error {
	_, err := conn.netConn.Write(p.Marshal())
	return err
}

// Buffered returns the bytes already read from the connection that were
// not consumed as a packet yet.
func (conn mcConn) Buffered() []byte {
	br, ok := conn.reader.(*bufio.Reader)
	if !ok || br.Buffered() == 0 {
		return nil
	}
	bb, _ := br.Peek(br.Buffered())
	return bb
}
