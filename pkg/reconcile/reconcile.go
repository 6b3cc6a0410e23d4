// Package reconcile checks each host interface's stored IP against what its
// DNS name resolves to, and fixes the stored IP when they differ.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mt-inside/fix-host-ips/pkg/bios"
	"github.com/mt-inside/fix-host-ips/pkg/resolve"
	"github.com/mt-inside/fix-host-ips/pkg/zabbix"

	"github.com/mt-inside/http-log/pkg/output"
)

// Inventory is the part of the monitoring system's API the loop needs.
type Inventory interface {
	HostInterfaces(ctx context.Context) ([]zabbix.HostInterface, error)
	UpdateInterfaceIP(ctx context.Context, id, ip string) error
}

type Options struct {
	DryRun bool

	// If set, the chosen address is reverse-resolved and a warning printed
	// when it doesn't point back at the interface's name.
	Reverse resolve.ReverseResolver
}

type Reconciler struct {
	s        output.TtyStyler
	b        bios.Bios
	inv      Inventory
	resolver resolve.Resolver
	opts     Options
}

func New(s output.TtyStyler, b bios.Bios, inv Inventory, resolver resolve.Resolver, opts Options) *Reconciler {
	return &Reconciler{s: s, b: b, inv: inv, resolver: resolver, opts: opts}
}

// Run fetches every main agent interface and checks each in turn. Per-interface
// failures are reported in the Results; only a failed fetch (or cancellation)
// returns an error.
func (r *Reconciler) Run(ctx context.Context) ([]Result, error) {
	his, err := r.inv.HostInterfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching host interfaces: %w", err)
	}
	r.b.Trace("Fetched host interfaces", "count", len(his))

	results := make([]Result, 0, len(his))
	for _, hi := range his {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.Check(ctx, hi))
	}

	return results, nil
}

func (r *Reconciler) Check(ctx context.Context, hi zabbix.HostInterface) Result {
	res := Result{Interface: hi}
	label := hostLabel(hi)

	/* Naming */

	if hi.DNS != hi.Host {
		res.NameMismatch = true
		r.b.PrintWarn(fmt.Sprintf("%s has dns %q", r.s.Addr(label), hi.DNS))
		if hi.DNS != "" && hi.Host != "" {
			r.b.Printf("\t%s\n", r.renderDiff(hi.Host, hi.DNS))
		}
	}

	if hi.UseIP {
		res.Outcome = SkippedUseIP
		r.b.PrintInfo(fmt.Sprintf("%s is using IP instead of hostname. Skipping.", r.s.Addr(label)))
		return res
	}

	/* DNS */

	ip, lErr := r.lookup(ctx, hi.DNS)
	if lErr != nil {
		res.Outcome = LookupFailed
		res.Err = lErr
		r.b.PrintWarn(fmt.Sprintf("%s: %v", r.s.Addr(hi.DNS), lErr.Err))
		return res
	}
	res.ResolvedIP = ip
	r.b.Trace("Resolved", "name", hi.DNS, "ip", ip)

	if r.opts.Reverse != nil {
		r.checkReverse(ctx, hi.DNS, ip)
	}

	if sameIP(ip, hi.IP) {
		res.Outcome = Unchanged
		return res
	}

	/* Fix */

	if r.opts.DryRun {
		res.Outcome = WouldUpdate
		r.b.Printf("%s has the wrong IP: %s. Would change it to: %s\n", r.s.Addr(label), r.s.Addr(hi.IP), r.s.Addr(ip.String()))
		return res
	}

	r.b.Printf("%s has the wrong IP: %s. Changing it to: %s\n", r.s.Addr(label), r.s.Addr(hi.IP), r.s.Addr(ip.String()))

	if err := r.inv.UpdateInterfaceIP(ctx, hi.ID, ip.String()); err != nil {
		res.Outcome = UpdateFailed
		res.Err = &UpdateError{InterfaceID: hi.ID, IP: ip.String(), Err: err}
		r.b.PrintErr(res.Err.Error())
		return res
	}
	res.Outcome = Updated
	r.b.PrintOk(fmt.Sprintf("%s now has IP %s", r.s.Addr(label), r.s.Addr(ip.String())))

	return res
}

func (r *Reconciler) lookup(ctx context.Context, name string) (net.IP, *LookupError) {
	if name == "" {
		return nil, &LookupError{Name: name, Err: errors.New("no DNS name set")}
	}

	ascii, err := resolve.ASCII(name)
	if err != nil {
		return nil, &LookupError{Name: name, Err: err}
	}

	ips, err := r.resolver.LookupIP(ctx, ascii)
	if err != nil {
		return nil, &LookupError{Name: name, Err: err}
	}

	ip := pickAddr(ips)
	if ip == nil {
		return nil, &LookupError{Name: name, Err: resolve.ErrNotFound}
	}
	return ip, nil
}

func (r *Reconciler) checkReverse(ctx context.Context, name string, ip net.IP) {
	names, err := r.opts.Reverse.LookupAddr(ctx, ip)
	if err != nil {
		// Info-level cause reverse DNS is never set up properly
		r.b.PrintInfo(fmt.Sprintf("%s: no reverse record: %v", r.s.Addr(ip.String()), err))
		return
	}
	for _, n := range names {
		if resolve.SameName(n, name) {
			return
		}
	}
	r.b.PrintWarn(fmt.Sprintf("dns inconsistency: %s reverses to %s, not %s", r.s.Addr(ip.String()), r.s.List(names, output.AddrStyle), r.s.Addr(name)))
}

// renderDiff shows how to get from the host's name to its DNS name, in the
// style of git's word-diff.
func (r *Reconciler) renderDiff(from, to string) string {
	differ := dmp.New()
	diffs := differ.DiffCleanupSemantic(differ.DiffMain(from, to, false))

	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case dmp.DiffEqual:
			sb.WriteString(d.Text)
		case dmp.DiffDelete:
			sb.WriteString(r.s.Fail("[-" + d.Text + "-]"))
		case dmp.DiffInsert:
			sb.WriteString(r.s.Ok("{+" + d.Text + "+}"))
		}
	}
	return sb.String()
}

func hostLabel(hi zabbix.HostInterface) string {
	if hi.Host != "" {
		return hi.Host
	}
	return fmt.Sprintf("interface %s", hi.ID)
}

// The stored IP is dotted-quad, so an IPv4 answer is the one to compare.
func pickAddr(ips []net.IP) net.IP {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}

func sameIP(resolved net.IP, stored string) bool {
	ip := net.ParseIP(strings.TrimSpace(stored))
	return ip != nil && ip.Equal(resolved)
}
