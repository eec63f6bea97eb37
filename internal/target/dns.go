package target

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DNSLookup resolves names by querying a single nameserver directly
// instead of going through the system resolver.
type DNSLookup struct {
	server string
	client *dns.Client
}

// NewDNSLookup creates a lookup against server ("host:port") using UDP.
func NewDNSLookup(server string, timeout time.Duration) *DNSLookup {
	return &DNSLookup{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupNetIP implements Lookup. network is "ip4", "ip6" or "ip".
func (d *DNSLookup) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	var qtypes []uint16
	switch network {
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	}

	var addrs []netip.Addr
	for _, qtype := range qtypes {
		found, err := d.query(ctx, host, qtype)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, found...)
	}

	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: d.server, IsNotFound: true}
	}
	return addrs, nil
}

func (d *DNSLookup) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	in, _, err := d.client.ExchangeContext(ctx, msg, d.server)
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", dns.TypeToString[qtype], host, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: d.server, IsNotFound: true}
	default:
		return nil, &net.DNSError{Err: dns.RcodeToString[in.Rcode], Name: host, Server: d.server}
	}

	var addrs []netip.Addr
	for _, rr := range in.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if a, ok := netip.AddrFromSlice(v.A); ok {
				addrs = append(addrs, a.Unmap())
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(v.AAAA); ok {
				addrs = append(addrs, a)
			}
		}
	}
	return addrs, nil
}
