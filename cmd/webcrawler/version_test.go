package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionInfoNeverEmpty(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, getVersion())
	require.NotEmpty(t, getCommit())
	require.NotEmpty(t, getDate())
}

func TestVersionCmd_Output(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "webcrawler version "))
	require.True(t, strings.HasPrefix(lines[1], "  commit: "))
	require.True(t, strings.HasPrefix(lines[2], "  built:  "))
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	// A missing config file would fail any command that loads configuration.
	root.SetArgs([]string{"version", "--config", "/nonexistent/config.yaml"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "webcrawler version")
}

func TestVersionCmd_UsesLdflags(t *testing.T) {
	prevVersion, prevCommit, prevDate := version, commit, date
	t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })
	version, commit, date = "v1.2.3", "abc1234", "2026-01-02"

	require.Equal(t, "v1.2.3", getVersion())
	require.Equal(t, "abc1234", getCommit())
	require.Equal(t, "2026-01-02", getDate())
}
