package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/realDragonium/bungeespoof"
	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/identity"
	"github.com/realDragonium/bungeespoof/mc"
)

var (
	ErrNotValidHandshake = errors.New("not a valid handshake state")
	ErrBadUpstream       = errors.New("invalid upstream address")

	connections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bungeespoof_relay_connections_total",
		Help: "Connections accepted by the relay, by handshake state.",
	}, []string{"state"})
)

// Relay forwards local client connections to one upstream server and runs
// the handshake hooks on the way out.
type Relay struct {
	cfg     config.RelayConfig
	hooks   *bungeespoof.Hooks
	session identity.Session
	log     logrus.FieldLogger

	upstreamHost string
	upstreamPort uint16
	active       atomic.Int64
}

// New builds a relay for cfg. session is the player session used for
// rewrites; when it carries no username the name from the client's login
// start packet is used instead.
func New(cfg config.RelayConfig, hooks *bungeespoof.Hooks, session identity.Session, log logrus.FieldLogger) (*Relay, error) {
	host, portStr, err := net.SplitHostPort(cfg.ProxyTo)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrBadUpstream, cfg.ProxyTo, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrBadUpstream, cfg.ProxyTo, err)
	}
	if hooks == nil {
		hooks = &bungeespoof.Hooks{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Relay{
		cfg:          cfg,
		hooks:        hooks,
		session:      session,
		log:          log,
		upstreamHost: host,
		upstreamPort: uint16(port),
	}, nil
}

// Serve accepts connections until ln is closed.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				r.log.Info("listener was closed, stopping with accepting connections")
				return nil
			}
			r.log.WithError(err).Warn("accept failed")
			continue
		}
		go func() {
			if err := r.Handle(ctx, conn); err != nil {
				r.log.WithError(err).WithField("client", conn.RemoteAddr().String()).Warn("connection dropped")
			}
		}()
	}
}

// ActiveConnections is the number of connections currently being relayed.
func (r *Relay) ActiveConnections() int64 {
	return r.active.Load()
}

// Handle relays one client connection and blocks until either side closes.
func (r *Relay) Handle(ctx context.Context, conn net.Conn) error {
	r.active.Add(1)
	defer r.active.Add(-1)

	clientConn := mc.NewMcConn(conn)
	if r.cfg.IOTimeout > 0 {
		conn.SetDeadline(time.Now().Add(r.cfg.IOTimeout))
	}
	hsPacket, err := clientConn.ReadPacket()
	if err != nil {
		connections.WithLabelValues("error").Inc()
		conn.Close()
		return fmt.Errorf("reading handshake: %w", err)
	}
	hs, err := mc.UnmarshalServerBoundHandshake(hsPacket)
	if err != nil {
		connections.WithLabelValues("error").Inc()
		conn.Close()
		return fmt.Errorf("parsing handshake: %w", err)
	}
	state := hs.State()
	connections.WithLabelValues(state.String()).Inc()
	if state == mc.UnknownState {
		conn.Close()
		return ErrNotValidHandshake
	}

	secondPacket, err := clientConn.ReadPacket()
	if err != nil {
		conn.Close()
		return fmt.Errorf("reading second packet: %w", err)
	}
	var username string
	if state == mc.Login {
		loginStart, err := mc.UnmarshalServerBoundLoginStart(secondPacket)
		if err != nil {
			conn.Close()
			return fmt.Errorf("parsing login start: %w", err)
		}
		username = string(loginStart.Name)
	}
	conn.SetDeadline(time.Time{})

	hs.Retarget(r.upstreamHost, r.upstreamPort)
	ev := bungeespoof.NewHandshakeEvent(hs, r.cfg.ProxyTo, r.sessionFor(username))
	r.hooks.Dispatch(ctx, ev)

	r.log.WithFields(logrus.Fields{
		"client":   conn.RemoteAddr().String(),
		"state":    state.String(),
		"upstream": r.cfg.ProxyTo,
		"outcome":  ev.Result.Outcome.String(),
	}).Debug("relaying connection")

	serverConn, err := r.dial(ctx, conn.RemoteAddr())
	if err != nil {
		if state == mc.Login {
			r.disconnect(clientConn, conn, "Could not reach "+r.cfg.ProxyTo)
		}
		conn.Close()
		return err
	}
	serverMcConn := mc.NewMcConn(serverConn)
	if err := serverMcConn.WritePacket(ev.Handshake.Marshal()); err != nil {
		return closeBoth(conn, serverConn, fmt.Errorf("writing handshake: %w", err))
	}
	if err := serverMcConn.WritePacket(secondPacket); err != nil {
		return closeBoth(conn, serverConn, fmt.Errorf("writing second packet: %w", err))
	}
	if rest := clientConn.Buffered(); len(rest) > 0 {
		if _, err := serverConn.Write(rest); err != nil {
			return closeBoth(conn, serverConn, fmt.Errorf("writing buffered data: %w", err))
		}
	}
	ProxyConnection(conn, serverConn)
	return nil
}

// disconnect tells a client in the login state why it is being dropped.
func (r *Relay) disconnect(clientConn mc.McConn, conn net.Conn, reason string) {
	text, _ := json.Marshal(chatMessage{Text: reason})
	if r.cfg.IOTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(r.cfg.IOTimeout))
	}
	pk := mc.ClientBoundDisconnect{Reason: mc.Chat(text)}.Marshal()
	if err := clientConn.WritePacket(pk); err != nil {
		r.log.WithError(err).Debug("could not send disconnect")
	}
}

type chatMessage struct {
	Text string `json:"text"`
}

func (r *Relay) sessionFor(username string) identity.Session {
	if r.session != nil && r.session.Username() != "" {
		return r.session
	}
	if username == "" {
		return nil
	}
	return identity.StaticSession{Name: username}
}

func (r *Relay) dial(ctx context.Context, client net.Addr) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: r.cfg.DialTimeout,
	}
	if r.cfg.ProxyBind != "" {
		dialer.LocalAddr = &net.TCPAddr{
			IP: net.ParseIP(r.cfg.ProxyBind),
		}
	}
	serverConn, err := dialer.DialContext(ctx, "tcp", r.cfg.ProxyTo)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", r.cfg.ProxyTo, err)
	}
	if !r.cfg.SendProxyProtocol {
		return serverConn, nil
	}
	header := &proxyproto.Header{
		Version:           2,
		Command:           proxyproto.PROXY,
		TransportProtocol: transportFor(client),
		SourceAddr:        client,
		DestinationAddr:   serverConn.RemoteAddr(),
	}
	if _, err := header.WriteTo(serverConn); err != nil {
		serverConn.Close()
		return nil, fmt.Errorf("writing proxy protocol header: %w", err)
	}
	return serverConn, nil
}

func transportFor(addr net.Addr) proxyproto.AddressFamilyAndProtocol {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok && tcpAddr.IP.To4() == nil {
		return proxyproto.TCPv6
	}
	return proxyproto.TCPv4
}

func closeBoth(client, server net.Conn, err error) error {
	client.Close()
	server.Close()
	return err
}

// ProxyConnection copies bytes both ways and closes both connections once
// either direction ends.
func ProxyConnection(client, server net.Conn) {
	go func() {
		pipe(server, client)
		client.Close()
	}()
	pipe(client, server)
	server.Close()
}

func pipe(c1, c2 net.Conn) {
	buffer := make([]byte, 0xffff)
	for {
		n, err := c1.Read(buffer)
		if err != nil {
			return
		}
		_, err = c2.Write(buffer[:n])
		if err != nil {
			return
		}
	}
}
