package bios

import (
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-logr/logr"
	"github.com/mt-inside/http-log/pkg/output"
)

// Bios prints the user-facing diagnostics of a run. Trace output goes to the
// logger instead, so it can be turned up without cluttering the report.
type Bios struct {
	s   output.TtyStyler
	out io.Writer
	log logr.Logger

	exit func(int)
}

func NewBios(s output.TtyStyler, out io.Writer, log logr.Logger) Bios {
	return Bios{s: s, out: out, log: log, exit: os.Exit}
}

func (b Bios) Printf(format string, a ...interface{}) {
	fmt.Fprintf(b.out, format, a...)
}

func (b Bios) Banner(title string) {
	fmt.Fprint(b.out, b.s.Banner(title))
}

func (b Bios) PrintInfo(msg string) {
	fmt.Fprintf(b.out, "%s %s\n", b.s.Info("Info:"), msg)
}

func (b Bios) PrintOk(msg string) {
	fmt.Fprintf(b.out, "%s %s\n", b.s.Ok("Ok:"), msg)
}

func (b Bios) PrintWarn(msg string) {
	fmt.Fprintf(b.out, "%s %s\n", b.s.Warn("Warning:"), msg)
}

func (b Bios) PrintErr(msg string) {
	fmt.Fprintf(b.out, "%s %s\n", b.s.Fail("Error:"), msg)
}

func (b Bios) CheckWarn(err error) bool {
	if err != nil {
		b.PrintWarn(err.Error())
		return false
	}
	return true
}

// Unwrap is for errors that end the run.
func (b Bios) Unwrap(err error) {
	if err != nil {
		b.PrintErr(err.Error())
		b.exit(1)
	}
}

func (b Bios) Trace(msg string, keysAndValues ...interface{}) {
	b.log.V(1).Info(msg, keysAndValues...)
}

func (b Bios) Dump(msg string, v interface{}) {
	if l := b.log.V(2); l.Enabled() {
		l.Info(msg, "value", spew.Sdump(v))
	}
}
