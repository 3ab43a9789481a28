package config

import (
	"fmt"
	"math/rand/v2"
	"net"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

var ipv4Pattern = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)

// SpoofPolicy decides if and how a login handshake gets legacy forwarding
// data. It is shared read-only by every connection attempt.
type SpoofPolicy struct {
	TargetAddress      string `mapstructure:"target_address" json:"targetAddress" yaml:"target_address"`
	RandomizeLastOctet bool   `mapstructure:"randomize_last_octet" json:"randomizeLastOctet" yaml:"randomize_last_octet"`

	SpoofPort   bool `mapstructure:"spoof_port" json:"spoofPort" yaml:"spoof_port"`
	SpoofedPort int  `mapstructure:"spoofed_port" json:"spoofedPort" yaml:"spoofed_port"`

	SpoofHostname bool `mapstructure:"spoof_hostname" json:"spoofHostname" yaml:"spoof_hostname"`
	// HostnameOverride replaces the host when SpoofHostname is set. Empty
	// means the forwarded ip is used as host.
	HostnameOverride string `mapstructure:"hostname_override" json:"hostnameOverride,omitempty" yaml:"hostname_override,omitempty"`

	// Whitelist holds "host:port" entries; empty allows every server.
	Whitelist  []string `mapstructure:"whitelist" json:"whitelist" yaml:"whitelist"`
	WarnOnSkip bool     `mapstructure:"warn_on_skip" json:"warnOnSkip" yaml:"warn_on_skip"`
}

func DefaultSpoofPolicy() SpoofPolicy {
	return SpoofPolicy{
		TargetAddress:      "127.0.0.1",
		RandomizeLastOctet: false,
		SpoofPort:          false,
		SpoofedPort:        25565,
		SpoofHostname:      true,
		Whitelist:          []string{},
		WarnOnSkip:         true,
	}
}

// ResolveForwardedIP returns the address to forward. With randomization on,
// an IPv4 target gets a last octet drawn from [1, 254]; hostnames and IPv6
// literals are returned as they are.
func ResolveForwardedIP(policy SpoofPolicy) string {
	addr := policy.TargetAddress
	if !policy.RandomizeLastOctet || !IsIPv4(addr) {
		return addr
	}
	octets := strings.Split(addr, ".")
	octets[3] = strconv.Itoa(rand.IntN(254) + 1)
	return strings.Join(octets, ".")
}

// IsWhitelisted reports if serverAddr ("host:port") may be spoofed. Matching
// is exact.
func IsWhitelisted(policy SpoofPolicy, serverAddr string) bool {
	if len(policy.Whitelist) == 0 {
		return true
	}
	return slices.Contains(policy.Whitelist, serverAddr)
}

func IsIPv4(addr string) bool {
	if !ipv4Pattern.MatchString(addr) {
		return false
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.To4() != nil
}

func (policy SpoofPolicy) InfoString() string {
	if len(policy.Whitelist) == 0 {
		return "Unrestricted"
	}
	return fmt.Sprintf("Whitelist: %d", len(policy.Whitelist))
}

func (policy SpoofPolicy) clone() SpoofPolicy {
	policy.Whitelist = slices.Clone(policy.Whitelist)
	return policy
}

// PolicyReader hands out the policy that applies right now.
type PolicyReader func() (SpoofPolicy, error)

func StaticPolicy(policy SpoofPolicy) PolicyReader {
	return func() (SpoofPolicy, error) {
		return policy.clone(), nil
	}
}

// PolicyStore holds the active policy and swaps it atomically on reload.
type PolicyStore struct {
	policy atomic.Pointer[SpoofPolicy]
}

func NewPolicyStore(policy SpoofPolicy) (*PolicyStore, error) {
	store := &PolicyStore{}
	if err := store.Store(policy); err != nil {
		return nil, err
	}
	return store, nil
}

func (store *PolicyStore) Load() SpoofPolicy {
	p := store.policy.Load()
	if p == nil {
		return DefaultSpoofPolicy()
	}
	return p.clone()
}

// Store replaces the active policy. An invalid policy is rejected and the
// previous one stays active.
func (store *PolicyStore) Store(policy SpoofPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	p := policy.clone()
	store.policy.Store(&p)
	return nil
}

func (store *PolicyStore) Reader() PolicyReader {
	return func() (SpoofPolicy, error) {
		return store.Load(), nil
	}
}
