//go:build !cgo || netgo

package resolve

const DnsResolverName = "Go native (/etc/hosts and resolv.conf nameservers only)"
