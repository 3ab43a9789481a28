package bungeespoof

import (
	"context"
	"sync"

	"github.com/realDragonium/bungeespoof/identity"
	"github.com/realDragonium/bungeespoof/mc"
)

type EventState byte

const (
	StateObserve EventState = iota
	// StateApplied is terminal: the interceptor already ran for the handshake.
	StateApplied
)

// HandshakeEvent is fired when a handshake is about to be sent.
type HandshakeEvent struct {
	Handshake  mc.ServerBoundHandshake
	ServerAddr string
	Session    identity.Session
	Result     Result

	state EventState
}

func NewHandshakeEvent(hs mc.ServerBoundHandshake, serverAddr string, session identity.Session) *HandshakeEvent {
	return &HandshakeEvent{
		Handshake:  hs,
		ServerAddr: serverAddr,
		Session:    session,
	}
}

func (ev *HandshakeEvent) State() EventState {
	return ev.state
}

func (ev *HandshakeEvent) Applied() bool {
	return ev.state == StateApplied
}

type HandshakeHook interface {
	OnHandshake(ctx context.Context, ev *HandshakeEvent)
}

type HookFunc func(ctx context.Context, ev *HandshakeEvent)

func (f HookFunc) OnHandshake(ctx context.Context, ev *HandshakeEvent) {
	f(ctx, ev)
}

// Hooks runs registered hooks synchronously, in registration order.
type Hooks struct {
	mu    sync.RWMutex
	hooks []HandshakeHook
}

func (h *Hooks) Register(hook HandshakeHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

func (h *Hooks) Dispatch(ctx context.Context, ev *HandshakeEvent) {
	h.mu.RLock()
	hooks := h.hooks
	h.mu.RUnlock()
	for _, hook := range hooks {
		hook.OnHandshake(ctx, ev)
	}
}
