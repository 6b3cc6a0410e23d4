package reconcile

import (
	"strconv"

	"github.com/mt-inside/fix-host-ips/pkg/bios"

	"github.com/mt-inside/http-log/pkg/output"
)

func PrintSummary(s output.TtyStyler, b bios.Bios, sum Summary) {
	b.Banner("Summary")

	b.Printf("%s interfaces checked\n", s.Bright(strconv.Itoa(sum.Total)))
	for _, o := range []Outcome{Unchanged, Updated, WouldUpdate, SkippedUseIP, LookupFailed, UpdateFailed} {
		n := sum.ByOutcome[o]
		if n == 0 {
			continue
		}
		count := strconv.Itoa(n)
		switch o {
		case Updated, WouldUpdate:
			count = s.Ok(count)
		case LookupFailed, UpdateFailed:
			count = s.Fail(count)
		}
		b.Printf("\t%s: %s\n", s.Noun(o.String()), count)
	}
	if sum.Mismatches > 0 {
		b.Printf("\t%s: %s\n", s.Noun("dns name differs from host name"), s.Warn(strconv.Itoa(sum.Mismatches)))
	}
}
