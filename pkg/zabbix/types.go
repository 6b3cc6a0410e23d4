package zabbix

import (
	"fmt"
	"strconv"
	"strings"
)

// InterfaceType as stored in hostinterface.type
type InterfaceType int

// hostinterface.get is filtered to this type.
const Agent InterfaceType = 1

// HostInterface is a primary interface of a monitored host, as returned by
// hostinterface.get with selectHosts. Only IP is ever written back.
type HostInterface struct {
	ID    string
	DNS   string
	IP    string
	UseIP bool
	Host  string
}

// The API returns every scalar as a string.
type rawHostInterface struct {
	InterfaceID string `json:"interfaceid"`
	DNS         string `json:"dns"`
	IP          string `json:"ip"`
	UseIP       string `json:"useip"`
	Hosts       []struct {
		Host string `json:"host"`
	} `json:"hosts"`
}

func (r rawHostInterface) cook() HostInterface {
	hi := HostInterface{
		ID:    r.InterfaceID,
		DNS:   r.DNS,
		IP:    r.IP,
		UseIP: r.UseIP == "1",
	}
	if len(r.Hosts) > 0 {
		hi.Host = r.Hosts[0].Host
	}
	return hi
}

// APIError is a JSON-RPC error object.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *APIError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("zabbix API error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("zabbix API error %d: %s %s", e.Code, e.Message, e.Data)
}

// Version is a Zabbix API version, eg 6.4.12.
type Version struct {
	Major, Minor, Patch int
}

func ParseVersion(s string) (Version, error) {
	var v Version
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return v, fmt.Errorf("malformed API version %q", s)
	}
	fields := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		// Pre-releases look like 7.0.0alpha1
		end := strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' })
		if end >= 0 {
			p = p[:end]
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return v, fmt.Errorf("malformed API version %q: %w", s, err)
		}
		*fields[i] = n
	}
	return v, nil
}

func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
