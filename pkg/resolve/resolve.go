// Package resolve turns the names stored in the inventory into addresses.
//
// Resolution is forward (name to address). The system resolver is what the
// monitoring server's own agent checks will most likely see, so it's the
// default; the manual resolver talks to the resolv.conf nameservers directly
// and so ignores /etc/hosts, nsswitch and friends.
package resolve

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

var ErrNotFound = errors.New("no addresses found")

type Resolver interface {
	LookupIP(ctx context.Context, name string) ([]net.IP, error)
}

type ReverseResolver interface {
	LookupAddr(ctx context.Context, ip net.IP) ([]string, error)
}

// ASCII returns the form of name that goes on the wire: punycode labels and
// no trailing dot.
func ASCII(name string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		return "", err
	}
	return ascii, nil
}

// SameName compares DNS names the way DNS does: case-insensitively, and
// ignoring a trailing root dot.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

// System is the Go standard library's resolver. Note that this might be
// Go-native or libc's getaddrinfo() depending on how we were built; see
// DnsResolverName.
type System struct {
	r       *net.Resolver
	timeout time.Duration
}

func NewSystem(timeout time.Duration) *System {
	return &System{r: net.DefaultResolver, timeout: timeout}
}

func (s *System) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *System) LookupIP(ctx context.Context, name string) ([]net.IP, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ips, err := s.r.LookupIP(ctx, "ip", name)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, ErrNotFound
	}
	return ips, nil
}

func (s *System) LookupAddr(ctx context.Context, ip net.IP) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.r.LookupAddr(ctx, ip.String())
}
