package bungeespoof

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/forwarding"
	"github.com/realDragonium/bungeespoof/identity"
	"github.com/realDragonium/bungeespoof/mc"
)

const unknownServer = "unknown"

var (
	ErrNoSession  = errors.New("no player session")
	ErrNoUsername = errors.New("player session has no username")
	ErrPanic      = errors.New("panic while rewriting handshake")
)

type Outcome byte

const (
	// Untouched handshakes are not login handshakes.
	Untouched Outcome = iota
	Skipped
	Applied
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Untouched:
		return "untouched"
	case Skipped:
		return "skipped"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes what happened to one handshake.
type Result struct {
	Outcome     Outcome
	ServerAddr  string
	ForwardedIP string
	Identity    identity.PlayerIdentity
	Truncated   bool
}

type IdentityResolver interface {
	Resolve(ctx context.Context, session identity.Session) identity.PlayerIdentity
}

// Rewrite returns hs with legacy forwarding data in its address when policy
// applies to serverAddr. Protocol version and intent are never changed. A
// Forge marker in the address is moved into a trailing property list. On
// error the returned handshake is hs as it came in.
func Rewrite(ctx context.Context, hs mc.ServerBoundHandshake, serverAddr string, policy config.SpoofPolicy, session identity.Session, resolver IdentityResolver) (mc.ServerBoundHandshake, Result, error) {
	res := Result{ServerAddr: serverAddr}
	if !hs.IsLoginRequest() {
		res.Outcome = Untouched
		return hs, res, nil
	}
	if !config.IsWhitelisted(policy, serverAddr) {
		res.Outcome = Skipped
		return hs, res, nil
	}

	if err := policy.Validate(); err != nil {
		return hs, res, err
	}
	if session == nil {
		return hs, res, ErrNoSession
	}
	username := session.Username()
	if username == "" {
		return hs, res, ErrNoUsername
	}

	res.ForwardedIP = config.ResolveForwardedIP(policy)
	res.Identity = resolver.Resolve(ctx, session)

	base, marker, forge := strings.Cut(hs.ServerAddress, mc.ForgeSeparator)
	if policy.SpoofHostname {
		base = res.ForwardedIP
		if policy.HostnameOverride != "" {
			base = policy.HostnameOverride
		}
	}
	suffix := forwarding.BuildSuffix(res.ForwardedIP, res.Identity)
	if forge {
		suffix += forwarding.Separator + forwarding.ForgeProperties(mc.ForgeSeparator+marker)
	}
	address, truncated := forwarding.Combine(base, suffix, forwarding.MaxAddressLength)
	res.Truncated = truncated

	port := hs.ServerPort
	if policy.SpoofPort {
		port = uint16(policy.SpoofedPort)
	}

	out := hs
	out.ServerAddress = address
	out.ServerPort = port
	res.Outcome = Applied
	return out, res, nil
}

func NewInterceptor(policy config.PolicyReader, session identity.Session, resolver IdentityResolver, notifier Notifier) *Interceptor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Interceptor{
		policy:   policy,
		session:  session,
		resolver: resolver,
		notifier: notifier,
	}
}

// Interceptor applies the spoof policy to outgoing handshakes. A failure
// while rewriting never drops the connection: the handshake goes out
// unmodified and the notifier is told why.
type Interceptor struct {
	policy   config.PolicyReader
	session  identity.Session
	resolver IdentityResolver
	notifier Notifier
}

// Intercept runs once for a handshake that is about to be sent. session may
// be nil, in which case the interceptor's own session is used.
func (i *Interceptor) Intercept(ctx context.Context, hs mc.ServerBoundHandshake, serverAddr string, session identity.Session) (out mc.ServerBoundHandshake, res Result) {
	if serverAddr == "" {
		serverAddr = hs.HostPort()
	}
	if serverAddr == "" {
		serverAddr = unknownServer
	}
	if !hs.IsLoginRequest() {
		handshakes.WithLabelValues(Untouched.String()).Inc()
		return hs, Result{Outcome: Untouched, ServerAddr: serverAddr}
	}
	if session == nil {
		session = i.session
	}

	defer func() {
		if r := recover(); r != nil {
			out, res = i.fail(hs, serverAddr, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		handshakes.WithLabelValues(res.Outcome.String()).Inc()
	}()

	policy, err := i.policy()
	if err != nil {
		return i.fail(hs, serverAddr, fmt.Errorf("reading spoof policy: %w", err))
	}

	out, res, err = Rewrite(ctx, hs, serverAddr, policy, session, i.resolver)
	if err != nil {
		return i.fail(hs, serverAddr, err)
	}

	switch res.Outcome {
	case Skipped:
		if policy.WarnOnSkip {
			i.notifier.SpoofSkipped(res)
		}
	case Applied:
		if res.Truncated {
			truncations.Inc()
			i.notifier.SuffixTruncated(res, len(out.ServerAddress))
		}
		i.notifier.SpoofApplied(res)
	}
	return out, res
}

func (i *Interceptor) fail(hs mc.ServerBoundHandshake, serverAddr string, err error) (mc.ServerBoundHandshake, Result) {
	i.notifier.SpoofFailed(serverAddr, err)
	return hs, Result{Outcome: Failed, ServerAddr: serverAddr}
}

// OnHandshake makes the interceptor a HandshakeHook.
func (i *Interceptor) OnHandshake(ctx context.Context, ev *HandshakeEvent) {
	if ev.Applied() {
		return
	}
	ev.Handshake, ev.Result = i.Intercept(ctx, ev.Handshake, ev.ServerAddr, ev.Session)
	ev.state = StateApplied
}
