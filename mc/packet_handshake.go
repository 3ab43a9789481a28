package mc

import (
	"net"
	"strconv"
	"strings"
)

const (
	ServerBoundHandshakePacketID byte = 0x00

	StatusState   = 1
	LoginState    = 2
	TransferState = 3

	HandshakeStatusState   = VarInt(StatusState)
	HandshakeLoginState    = VarInt(LoginState)
	HandshakeTransferState = VarInt(TransferState)

	ForgeSeparator = "\x00"
)

// HandshakeState is the intent a client declares in its handshake.
type HandshakeState byte

const (
	UnknownState HandshakeState = iota
	Status
	Login
	Transfer
)

func RequestState(n int) HandshakeState {
	switch n {
	case StatusState:
		return Status
	case LoginState:
		return Login
	case TransferState:
		return Transfer
	default:
		return UnknownState
	}
}

func (state HandshakeState) String() string {
	switch state {
	case Status:
		return "status"
	case Login:
		return "login"
	case Transfer:
		return "transfer"
	default:
		return "unknown"
	}
}

type McTypesHandshake struct {
	ProtocolVersion VarInt
	ServerAddress   String
	ServerPort      UnsignedShort
	NextState       VarInt
}

type ServerBoundHandshake struct {
	ProtocolVersion int
	ServerAddress   string
	ServerPort      uint16
	NextState       int
}

func (pk ServerBoundHandshake) Marshal() Packet {
	return MarshalPacket(
		ServerBoundHandshakePacketID,
		VarInt(pk.ProtocolVersion),
		String(pk.ServerAddress),
		UnsignedShort(pk.ServerPort),
		VarInt(pk.NextState),
	)
}

func UnmarshalServerBoundHandshake(packet Packet) (ServerBoundHandshake, error) {
	var pk McTypesHandshake
	var hs ServerBoundHandshake

	if packet.ID != ServerBoundHandshakePacketID {
		return hs, ErrInvalidPacketID
	}

	if err := packet.Scan(
		&pk.ProtocolVersion,
		&pk.ServerAddress,
		&pk.ServerPort,
		&pk.NextState,
	); err != nil {
		return hs, err
	}
	hs = ServerBoundHandshake{
		ProtocolVersion: int(pk.ProtocolVersion),
		ServerAddress:   string(pk.ServerAddress),
		ServerPort:      uint16(pk.ServerPort),
		NextState:       int(pk.NextState),
	}
	return hs, nil
}

func (pk ServerBoundHandshake) State() HandshakeState {
	return RequestState(pk.NextState)
}

func (pk ServerBoundHandshake) IsStatusRequest() bool {
	return VarInt(pk.NextState) == HandshakeStatusState
}

func (pk ServerBoundHandshake) IsLoginRequest() bool {
	return VarInt(pk.NextState) == HandshakeLoginState
}

func (pk ServerBoundHandshake) IsTransferRequest() bool {
	return VarInt(pk.NextState) == HandshakeTransferState
}

func (pk ServerBoundHandshake) IsForgeAddress() bool {
	return strings.Contains(pk.ServerAddress, ForgeSeparator)
}

// ParseServerAddress returns the host part of the address field, without
// any Forge marker or forwarding data behind it.
func (pk ServerBoundHandshake) ParseServerAddress() string {
	return strings.SplitN(pk.ServerAddress, ForgeSeparator, 2)[0]
}

// HostPort is "host:port" of the server the handshake is addressed to.
func (pk ServerBoundHandshake) HostPort() string {
	host := pk.ParseServerAddress()
	if host == "" {
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(int(pk.ServerPort)))
}

// Retarget points the handshake at host:port while keeping a Forge marker
// that followed the original host.
func (pk *ServerBoundHandshake) Retarget(host string, port uint16) {
	parts := strings.SplitN(pk.ServerAddress, ForgeSeparator, 2)
	addr := host
	if len(parts) > 1 {
		addr = host + ForgeSeparator + parts[1]
	}
	pk.ServerAddress = addr
	pk.ServerPort = port
}
