// Package parser turns an HTML document into word counts and outgoing links.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// nonText lists elements whose contents never count as words.
const nonText = "script, style, noscript, template"

// Parser extracts words and links. It is safe for concurrent use.
type Parser struct {
	ignoredWords []*regexp.Regexp
}

// New builds a Parser that drops words fully matching any ignored pattern.
// Patterns are compiled with crawler.CompilePatterns.
func New(ignoredWords []*regexp.Regexp) *Parser {
	return &Parser{ignoredWords: ignoredWords}
}

// Parse reads an HTML body fetched from pageURL.
func (p *Parser) Parse(pageURL string, body []byte) (crawler.Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return crawler.Page{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Page{}, fmt.Errorf("parse html: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}
	links := p.links(doc, base)

	doc.Find(nonText).Remove()
	return crawler.Page{
		WordCounts: p.words(visibleText(doc.Selection)),
		Links:      links,
	}, nil
}

// visibleText joins every text node under s with a space, so adjacent elements
// never fuse into one word.
func visibleText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				b.WriteString(c.Text())
				b.WriteByte(' ')
				return
			}
			walk(c)
		})
	}
	walk(s)
	return b.String()
}

func (p *Parser) words(text string) map[string]int {
	counts := make(map[string]int)
	// cases.Caser is stateful and not safe to share between goroutines.
	lower := cases.Lower(language.Und)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, field := range fields {
		word := lower.String(field)
		if word == "" || crawler.MatchesAny(p.ignoredWords, word) {
			continue
		}
		counts[word]++
	}
	return counts
}

func (p *Parser) links(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, link)
	})
	return out
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
