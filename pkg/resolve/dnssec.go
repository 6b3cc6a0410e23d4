package resolve

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"
	"github.com/peterzen/goresolver"
)

type strictQuerier interface {
	StrictNSQuery(qname string, qtype uint16) ([]dns.RR, error)
}

// DNSSEC only passes on answers for names whose A records validate.
// Recursive resolvers are known to strip DNSSEC records, let alone validate
// them properly, so goresolver walks the chain of trust itself.
type DNSSEC struct {
	inner Resolver
	q     strictQuerier
}

func NewDNSSEC(inner Resolver, resolvConf string) (*DNSSEC, error) {
	r, err := goresolver.NewResolver(resolvConf)
	if err != nil {
		return nil, fmt.Errorf("dnssec resolver: %w", err)
	}
	return &DNSSEC{inner: inner, q: r}, nil
}

func (d *DNSSEC) LookupIP(ctx context.Context, name string) ([]net.IP, error) {
	ips, err := d.inner.LookupIP(ctx, name)
	if err != nil {
		return nil, err
	}

	// goresolver takes no context, so at least don't start once cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.q.StrictNSQuery(dns.Fqdn(name), dns.TypeA); err != nil {
		return nil, fmt.Errorf("dnssec validation of %s failed: %w", name, err)
	}

	return ips, nil
}
