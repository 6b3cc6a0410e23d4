package reconcile

import (
	"fmt"
	"net"

	"github.com/mt-inside/fix-host-ips/pkg/zabbix"
)

type Outcome int

const (
	Unchanged Outcome = iota
	Updated
	WouldUpdate
	SkippedUseIP
	LookupFailed
	UpdateFailed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case WouldUpdate:
		return "would update"
	case SkippedUseIP:
		return "skipped (uses IP)"
	case LookupFailed:
		return "lookup failed"
	case UpdateFailed:
		return "update failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type Result struct {
	Interface    zabbix.HostInterface
	Outcome      Outcome
	NameMismatch bool
	ResolvedIP   net.IP
	Err          error
}

type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string { return fmt.Sprintf("looking up %s: %v", e.Name, e.Err) }
func (e *LookupError) Unwrap() error { return e.Err }

type UpdateError struct {
	InterfaceID string
	IP          string
	Err         error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("updating interface %s to %s: %v", e.InterfaceID, e.IP, e.Err)
}
func (e *UpdateError) Unwrap() error { return e.Err }

type Summary struct {
	Total      int
	Mismatches int
	ByOutcome  map[Outcome]int
}

func Summarise(results []Result) Summary {
	s := Summary{Total: len(results), ByOutcome: map[Outcome]int{}}
	for _, r := range results {
		s.ByOutcome[r.Outcome]++
		if r.NameMismatch {
			s.Mismatches++
		}
	}
	return s
}

func (s Summary) Failures() int {
	return s.ByOutcome[LookupFailed] + s.ByOutcome[UpdateFailed]
}
