// Package wordcount ranks merged word counts and encodes them in rank order.
package wordcount

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Count is one word and the number of times it was seen.
type Count struct {
	Word  string
	Count int
}

// Counts is an ordered word-count mapping. It encodes as a JSON object
// (or YAML mapping) whose keys keep the slice order.
type Counts []Count

// Map returns the counts as an unordered map.
func (c Counts) Map() map[string]int {
	out := make(map[string]int, len(c))
	for _, wc := range c {
		out[wc.Word] = wc.Count
	}
	return out
}

// MarshalJSON writes {"word": n, ...} in slice order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, wc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(wc.Word)
		if err != nil {
			return nil, fmt.Errorf("marshal word %q: %w", wc.Word, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", wc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read word counts: %w", err)
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("word counts: expected JSON object")
	}
	out := Counts{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read word: %w", err)
		}
		word, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("word counts: unexpected key %v", keyTok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("read count for %q: %w", word, err)
		}
		out = append(out, Count{Word: word, Count: n})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read word counts: %w", err)
	}
	*c = out
	return nil
}

// MarshalYAML emits a mapping node so key order survives encoding.
func (c Counts) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, wc := range c {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: wc.Word},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(wc.Count)},
		)
	}
	return node, nil
}

// Ranker selects the most popular words.
//
// Ties on count are broken by longer word first, then lexicographic order,
// so the output is a total order independent of map iteration.
type Ranker struct{}

// Top returns at most k entries of counts in rank order. counts is not modified.
func (Ranker) Top(counts map[string]int, k int) Counts {
	if k <= 0 || len(counts) == 0 {
		return Counts{}
	}
	all := make(Counts, 0, len(counts))
	for word, n := range counts {
		all = append(all, Count{Word: word, Count: n})
	}
	Sort(all)
	if len(all) > k {
		all = all[:k]
	}
	return slices.Clip(all)
}

// Sort orders counts in place by rank.
func Sort(c Counts) {
	slices.SortFunc(c, compare)
}

func compare(a, b Count) int {
	if a.Count != b.Count {
		if a.Count > b.Count {
			return -1
		}
		return 1
	}
	la, lb := utf8.RuneCountInString(a.Word), utf8.RuneCountInString(b.Word)
	if la != lb {
		if la > lb {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Word, b.Word)
}
