package crawler

import (
	"errors"
	"testing"
)

func TestCompilePatterns(t *testing.T) {
	t.Run("full match only", func(t *testing.T) {
		patterns, err := CompilePatterns("ignored_urls", []string{`http://example\.com/.*\.pdf`})
		if err != nil {
			t.Fatalf("CompilePatterns() error = %v", err)
		}
		cases := []struct {
			url     string
			ignored bool
		}{
			{"http://example.com/docs/a.pdf", true},
			{"http://example.com/docs/a.pdf?x=1", false},
			{"see http://example.com/a.pdf", false},
			{"http://example.com/index.html", false},
		}
		for _, tc := range cases {
			if got := MatchesAny(patterns, tc.url); got != tc.ignored {
				t.Fatalf("url %q ignored=%v, want %v", tc.url, got, tc.ignored)
			}
		}
	})

	t.Run("alternation is anchored as a whole", func(t *testing.T) {
		patterns, err := CompilePatterns("ignored_urls", []string{"a|ab"})
		if err != nil {
			t.Fatalf("CompilePatterns() error = %v", err)
		}
		if !MatchesAny(patterns, "ab") {
			t.Fatalf("expected ab to match a|ab")
		}
		if MatchesAny(patterns, "abc") {
			t.Fatalf("did not expect abc to match a|ab")
		}
	})

	t.Run("blank entries skipped", func(t *testing.T) {
		patterns, err := CompilePatterns("ignored_urls", []string{"", "  "})
		if err != nil {
			t.Fatalf("CompilePatterns() error = %v", err)
		}
		if len(patterns) != 0 {
			t.Fatalf("expected no patterns, got %d", len(patterns))
		}
		if MatchesAny(patterns, "anything") {
			t.Fatalf("empty pattern set should never match")
		}
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := CompilePatterns("ignored_words", []string{"("})
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
		if cfgErr.Field != "ignored_words" {
			t.Fatalf("field = %q, want ignored_words", cfgErr.Field)
		}
	})
}
