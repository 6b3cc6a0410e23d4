package bios

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/logrusorgru/aurora/v3"
	"github.com/mt-inside/http-log/pkg/output"
	"github.com/stretchr/testify/require"
)

func newTestBios(buf *bytes.Buffer) Bios {
	return NewBios(output.NewTtyStyler(aurora.NewAurora(false)), buf, logr.Discard())
}

func TestBiosPrefixes(t *testing.T) {
	var buf bytes.Buffer
	b := newTestBios(&buf)

	b.PrintWarn("w")
	b.PrintInfo("i")
	b.PrintErr("e")
	b.PrintOk("o")
	b.Banner("Summary")

	require.Equal(t, "Warning: w\nInfo: i\nError: e\nOk: o\n\n== Summary ==\n\n", buf.String())
}

func TestBiosUnwrapExits(t *testing.T) {
	var buf bytes.Buffer
	b := newTestBios(&buf)
	code := -1
	b.exit = func(c int) { code = c }

	b.Unwrap(nil)
	require.Equal(t, -1, code)
	require.Empty(t, buf.String())

	b.Unwrap(errors.New("login failed"))
	require.Equal(t, 1, code)
	require.Equal(t, "Error: login failed\n", buf.String())
}

func TestClampVerbosity(t *testing.T) {
	require.Equal(t, 0, clampVerbosity(-3))
	require.Equal(t, 2, clampVerbosity(2))
	require.Equal(t, 127, clampVerbosity(128))
	require.Equal(t, 127, clampVerbosity(1000))

	require.True(t, NewLogger(1000).V(127).Enabled())
	require.True(t, NewLogger(1000).V(1).Enabled())
	require.False(t, NewLogger(0).V(1).Enabled())
}
