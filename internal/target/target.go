// Package target validates scan targets and resolves them to a single
// connectable address before any connection attempt is made.
package target

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
)

const (
	maxNameLength  = 253
	maxLabelLength = 63
)

// ScanTarget is a validated host together with the address to connect to.
type ScanTarget struct {
	// Host is the normalized input: an address literal or a lower-case name.
	Host string `json:"host"`
	// Addr is the address connections are made to.
	Addr netip.Addr `json:"address"`
}

// String returns "host (addr)" for names and the bare address for literals.
func (t ScanTarget) String() string {
	if t.Host == t.Addr.String() {
		return t.Host
	}
	return t.Host + " (" + t.Addr.String() + ")"
}

// Dial returns the host:port string for a connection to port.
func (t ScanTarget) Dial(port uint16) string {
	return netip.AddrPortFrom(t.Addr, port).String()
}

// Parse validates host and returns its normalized form. It accepts IPv4
// dotted-decimal, IPv6 literals with or without brackets, and DNS names.
// No I/O is performed.
func Parse(host string) (string, error) {
	normalized, _, err := parse(host)
	return normalized, err
}

func parse(input string) (string, netip.Addr, error) {
	host := strings.TrimSpace(input)
	if host == "" {
		return "", netip.Addr{}, errors.ErrInvalidTarget(input, "host is empty")
	}

	bracketed := strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]")
	if bracketed {
		host = host[1 : len(host)-1]
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Zone() != "" {
			return "", netip.Addr{}, errors.ErrInvalidTarget(input, "scoped IPv6 addresses are not supported")
		}
		if bracketed && !addr.Is6() {
			return "", netip.Addr{}, errors.ErrInvalidTarget(input, "brackets are only valid around IPv6 addresses")
		}
		addr = addr.Unmap()
		return addr.String(), addr, nil
	}

	if bracketed || strings.Contains(host, ":") {
		return "", netip.Addr{}, errors.ErrInvalidTarget(input, "malformed IPv6 address")
	}

	if err := checkName(host); err != "" {
		return "", netip.Addr{}, errors.ErrInvalidTarget(input, err)
	}
	return strings.ToLower(strings.TrimSuffix(host, ".")), netip.Addr{}, nil
}

// checkName returns a reason when name is not a valid DNS host name.
func checkName(name string) string {
	name = strings.TrimSuffix(name, ".")
	if len(name) > maxNameLength {
		return "host name is longer than 253 characters"
	}

	labels := strings.Split(name, ".")
	for _, label := range labels {
		if label == "" {
			return "host name contains an empty label"
		}
		if len(label) > maxLabelLength {
			return "host name label is longer than 63 characters"
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return "host name label starts or ends with a hyphen"
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !isAlnum(c) && c != '-' {
				return "host contains invalid character " + string(rune(c))
			}
		}
	}

	// A numeric top-level label means the input was meant as an IPv4
	// address, e.g. "256.1.1.1" or "1.2.3".
	if isNumeric(labels[len(labels)-1]) {
		return "malformed IPv4 address"
	}
	return ""
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Lookup resolves a host name to addresses. *net.Resolver implements it.
type Lookup interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// LookupNetIP calls f.
func (f LookupFunc) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	return f(ctx, network, host)
}

// Resolver turns validated hosts into ScanTargets.
type Resolver struct {
	lookup Lookup
	cache  *expirable.LRU[string, netip.Addr]
	logger *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookup replaces the system resolver.
func WithLookup(l Lookup) Option {
	return func(r *Resolver) { r.lookup = l }
}

// WithCache memoizes successful resolutions for ttl, keeping at most size
// names. A size of zero disables the cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(r *Resolver) {
		if size > 0 {
			r.cache = expirable.NewLRU[string, netip.Addr](size, nil, ttl)
		}
	}
}

// WithLogger sets the logger used for resolution events.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver backed by net.DefaultResolver unless
// overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		lookup: net.DefaultResolver,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("resolver")
	return r
}

// Resolve validates host and resolves it exactly once. Address literals need
// no lookup. Names that do not resolve fail with HOST_UNRESOLVABLE. IPv4
// answers are preferred over IPv6.
func (r *Resolver) Resolve(ctx context.Context, host string) (ScanTarget, error) {
	normalized, addr, err := parse(host)
	if err != nil {
		return ScanTarget{}, err
	}
	if addr.IsValid() {
		return ScanTarget{Host: normalized, Addr: addr}, nil
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(normalized); ok {
			return ScanTarget{Host: normalized, Addr: cached}, nil
		}
	}

	addrs, err := r.lookup.LookupNetIP(ctx, "ip", normalized)
	if err != nil {
		r.logger.Debug("host resolution failed", "host", normalized, "error", err)
		return ScanTarget{}, errors.ErrHostUnresolvable(normalized, err)
	}

	chosen, ok := pick(addrs)
	if !ok {
		return ScanTarget{}, errors.ErrHostUnresolvable(normalized, &net.DNSError{
			Err: "no addresses", Name: normalized, IsNotFound: true,
		})
	}

	if r.cache != nil {
		r.cache.Add(normalized, chosen)
	}
	r.logger.Debug("host resolved", "host", normalized, "address", chosen.String(), "candidates", len(addrs))
	return ScanTarget{Host: normalized, Addr: chosen}, nil
}

func pick(addrs []netip.Addr) (netip.Addr, bool) {
	var fallback netip.Addr
	for _, a := range addrs {
		a = a.Unmap()
		if !a.IsValid() {
			continue
		}
		if a.Is4() {
			return a, true
		}
		if !fallback.IsValid() {
			fallback = a
		}
	}
	return fallback, fallback.IsValid()
}
