package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/webcrawler/internal/config"
)

// testConfig loads defaults from an otherwise empty config file.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  development: false\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

// execute runs the root command with an app built from cfg. Tests using it
// must not run in parallel because newApp is package state.
func execute(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	prev := newApp
	newApp = func(string) (*app, error) {
		return newAppFromConfig(cfg, zaptest.NewLogger(t)), nil
	}
	t.Cleanup(func() { newApp = prev })

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// newTestSite serves two linked pages.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><p>Gopher gopher gopher crawler</p><a href="/b">next</a></body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><p>gopher crawler</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	require.Equal(t, "webcrawler", cmd.Use)
	require.NotEmpty(t, cmd.Short)
	require.NotEmpty(t, cmd.Long)
	require.NotEmpty(t, cmd.Version)
	require.True(t, cmd.SilenceUsage)
	require.True(t, cmd.SilenceErrors)

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	require.Empty(t, flag.DefValue)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"crawl", "serve", "version"})
}

func TestRootCmd_MissingConfigFileFails(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"crawl", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "https://example.com"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "initialize application")
}

func TestCrawlCmd_ClosesAppOnSuccessAndFailure(t *testing.T) {
	cfg := testConfig(t)
	site := newTestSite(t)
	testcases := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"success", []string{"crawl", "--profile-output", filepath.Join(t.TempDir(), "p.txt"), site.URL}, false},
		{"bad format", []string{"crawl", "--format", "xml", site.URL}, true},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			var flushes int
			prev := newApp
			newApp = func(string) (*app, error) {
				a := newAppFromConfig(cfg, zaptest.NewLogger(t))
				a.stopTracing = func(context.Context) error {
					flushes++
					return nil
				}
				return a, nil
			}
			t.Cleanup(func() { newApp = prev })

			cmd := NewRootCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tc.args)
			err := cmd.ExecuteContext(context.Background())
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, 1, flushes, "spans are flushed exactly once")
		})
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	var flushes int
	a := newAppFromConfig(config.Config{}, zaptest.NewLogger(t))
	a.stopTracing = func(context.Context) error {
		flushes++
		return nil
	}
	a.Close()
	a.Close()
	require.Equal(t, 1, flushes)
}

func TestResolveApp_NotInitialized(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.EqualError(t, err, "application services not initialized")
}
