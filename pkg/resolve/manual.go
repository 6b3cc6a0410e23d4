package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/mt-inside/fix-host-ips/pkg/bios"
)

// Manual queries the nameservers listed in a resolv.conf file itself. It
// asks them to recurse for us, walks the search list, and follows CNAME
// chains in the answers.
type Manual struct {
	b      bios.Bios
	config *dns.ClientConfig
	client *dns.Client
}

func NewManual(b bios.Bios, resolvConf string, timeout time.Duration) (*Manual, error) {
	config, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", resolvConf, err)
	}
	return NewManualFromConfig(b, config, timeout), nil
}

func NewManualFromConfig(b bios.Bios, config *dns.ClientConfig, timeout time.Duration) *Manual {
	return &Manual{
		b:      b,
		config: config,
		client: &dns.Client{
			Dialer: &net.Dialer{Timeout: timeout},
		},
	}
}

func (m *Manual) LookupIP(ctx context.Context, name string) ([]net.IP, error) {
	if len(m.config.Servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}

	var lastErr error
serversLoop:
	for _, serverHost := range m.config.Servers {
		server := net.JoinHostPort(serverHost, m.config.Port)
		m.b.Trace("Trying DNS server", "addr", server)

		for _, fqdn := range m.config.NameList(name) {
			m.b.Trace("Trying search path item", "fqdn", fqdn)

			var answers []dns.RR
			failed := 0
			for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
				in, err := m.exchange(ctx, server, fqdn, qtype)
				if err != nil {
					m.b.Trace("Query failed", "fqdn", fqdn, "type", dns.TypeToString[qtype], "error", err)
					lastErr = err
					failed++
					continue
				}
				answers = append(answers, in.Answer...)
			}
			// One family failing doesn't void the other's answer.
			if failed == 2 {
				continue serversLoop
			}

			if ips := addrsFromAnswers(fqdn, answers); len(ips) > 0 {
				return ips, nil
			}
		}

		// A working server has said no for every name on the search path.
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return nil, fmt.Errorf("all DNS servers failed: %w", lastErr)
}

func (m *Manual) LookupAddr(ctx context.Context, ip net.IP) ([]string, error) {
	revIP, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return nil, err
	}
	m.b.Trace("Resolving in reverse-zone", "address", revIP)

	var lastErr error
	for _, serverHost := range m.config.Servers {
		server := net.JoinHostPort(serverHost, m.config.Port)
		m.b.Trace("Trying DNS server", "addr", server)

		in, err := m.exchange(ctx, server, revIP, dns.TypePTR)
		if err != nil {
			lastErr = err
			continue
		}

		var names []string
		for _, ans := range in.Answer {
			if ptr, ok := ans.(*dns.PTR); ok {
				names = append(names, ptr.Ptr)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("%s: %w", ip, ErrNotFound)
		}
		return names, nil
	}

	return nil, fmt.Errorf("all DNS servers failed: %w", lastErr)
}

// exchange returns an error for anything other than an answer or a clean
// NXDOMAIN, so the caller can move on to the next server.
func (m *Manual) exchange(ctx context.Context, server, name string, qtype uint16) (*dns.Msg, error) {
	q := new(dns.Msg)
	// Sets RD; we want the configured server to recurse for us.
	q.SetQuestion(name, qtype)

	in, _, err := m.client.ExchangeContext(ctx, q, server)
	if err != nil {
		return nil, err
	}
	switch in.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		return in, nil
	default:
		return nil, fmt.Errorf("%s %s from %s: %s", dns.TypeToString[qtype], name, server, dns.RcodeToString[in.Rcode])
	}
}

// CNAMEs can only point to one thing, so there's a single chain, and the
// addresses hang off its end.
func addrsFromAnswers(question string, answers []dns.RR) []net.IP {
	cnames := map[string]string{}
	for _, ans := range answers {
		if t, ok := ans.(*dns.CNAME); ok {
			cnames[strings.ToLower(t.Hdr.Name)] = t.Target
		}
	}

	end := question
	for seen := 0; seen <= len(cnames); seen++ {
		target, found := cnames[strings.ToLower(end)]
		if !found {
			break
		}
		end = target
	}

	var ips []net.IP
	for _, ans := range answers {
		if !SameName(ans.Header().Name, end) {
			continue
		}
		switch t := ans.(type) {
		case *dns.A:
			ips = append(ips, t.A)
		case *dns.AAAA:
			ips = append(ips, t.AAAA)
		}
	}
	return ips
}
