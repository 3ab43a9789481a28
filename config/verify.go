package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	hostnamePattern  = regexp.MustCompile(`^[0-9a-zA-Z\-._]{1,255}$`)
	numericPattern   = regexp.MustCompile(`^[0-9.]+$`)
	whitelistPattern = regexp.MustCompile(`^[0-9a-zA-Z.:\-_\[\]]{1,255}$`)

	logLevels  = []string{"trace", "debug", "info", "warn", "warning", "error"}
	logFormats = []string{"text", "json"}
)

type InvalidFieldError struct {
	Field  string
	Value  string
	Reason string
}

func (err *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", err.Field, err.Value, err.Reason)
}

// ValidAddress reports if addr is an IP literal or a hostname made of
// alphanumerics, '.', '-' and '_'. Dotted numbers that are not an IP, like
// 999.999.999.999, are rejected, and so are empty labels.
func ValidAddress(addr string) bool {
	if net.ParseIP(addr) != nil {
		return true
	}
	if !hostnamePattern.MatchString(addr) || numericPattern.MatchString(addr) {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(addr, "."), ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

func VerifyPolicy(policy SpoofPolicy) []error {
	errs := []error{}
	if !ValidAddress(policy.TargetAddress) {
		errs = append(errs, &InvalidFieldError{
			Field:  "target_address",
			Value:  policy.TargetAddress,
			Reason: "must be an IPv4/IPv6 address or a hostname",
		})
	}
	if policy.SpoofPort && (policy.SpoofedPort < 1 || policy.SpoofedPort > 65535) {
		errs = append(errs, &InvalidFieldError{
			Field:  "spoofed_port",
			Value:  strconv.Itoa(policy.SpoofedPort),
			Reason: "must be between 1 and 65535",
		})
	}
	if policy.HostnameOverride != "" && !ValidAddress(policy.HostnameOverride) {
		errs = append(errs, &InvalidFieldError{
			Field:  "hostname_override",
			Value:  policy.HostnameOverride,
			Reason: "must be an IPv4/IPv6 address or a hostname",
		})
	}
	for _, entry := range policy.Whitelist {
		if !whitelistPattern.MatchString(entry) {
			errs = append(errs, &InvalidFieldError{
				Field:  "whitelist",
				Value:  entry,
				Reason: "must be a host:port entry, IPv6 hosts in brackets",
			})
		}
	}
	return errs
}

func (policy SpoofPolicy) Validate() error {
	return errors.Join(VerifyPolicy(policy)...)
}

func VerifyRelay(cfg RelayConfig) []error {
	errs := []error{}
	if _, _, err := net.SplitHostPort(cfg.ListenTo); err != nil {
		errs = append(errs, &InvalidFieldError{Field: "relay.listen_to", Value: cfg.ListenTo, Reason: err.Error()})
	}
	if host, port, err := net.SplitHostPort(cfg.ProxyTo); err != nil {
		errs = append(errs, &InvalidFieldError{Field: "relay.proxy_to", Value: cfg.ProxyTo, Reason: err.Error()})
	} else if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 || host == "" {
		errs = append(errs, &InvalidFieldError{Field: "relay.proxy_to", Value: cfg.ProxyTo, Reason: "needs a host and a port between 1 and 65535"})
	}
	if cfg.ProxyBind != "" && net.ParseIP(cfg.ProxyBind) == nil {
		errs = append(errs, &InvalidFieldError{Field: "relay.proxy_bind", Value: cfg.ProxyBind, Reason: "must be an IP address"})
	}
	if cfg.DialTimeout <= 0 {
		errs = append(errs, &InvalidFieldError{Field: "relay.dial_timeout", Value: cfg.DialTimeout.String(), Reason: "must be positive"})
	}
	if cfg.IOTimeout <= 0 {
		errs = append(errs, &InvalidFieldError{Field: "relay.io_timeout", Value: cfg.IOTimeout.String(), Reason: "must be positive"})
	}
	return errs
}

func VerifyLog(cfg LogConfig) []error {
	errs := []error{}
	if !containsFold(logLevels, cfg.Level) {
		errs = append(errs, &InvalidFieldError{Field: "log.level", Value: cfg.Level, Reason: "unknown level"})
	}
	if !containsFold(logFormats, cfg.Format) {
		errs = append(errs, &InvalidFieldError{Field: "log.format", Value: cfg.Format, Reason: "must be text or json"})
	}
	if cfg.File.Enabled && cfg.File.Path == "" {
		errs = append(errs, &InvalidFieldError{Field: "log.file.path", Reason: "required when file output is enabled"})
	}
	return errs
}

// VerifyConfig collects every problem of cfg instead of stopping at the first.
func VerifyConfig(cfg Config) []error {
	errs := VerifyPolicy(cfg.Policy)
	if cfg.Session.UUID != "" {
		if _, err := cfg.Session.ParseUUID(); err != nil {
			errs = append(errs, &InvalidFieldError{Field: "session.uuid", Value: cfg.Session.UUID, Reason: err.Error()})
		}
	}
	errs = append(errs, VerifyRelay(cfg.Relay)...)
	errs = append(errs, VerifyLog(cfg.Log)...)
	return errs
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
