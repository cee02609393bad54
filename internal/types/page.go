// Package types provides type definitions for structured data used throughout the esg-extractor system.
package types

// Page is one page of a source document, identified by its zero-based index.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ScoredPage is a page with the relevance score computed by one ranking pass.
type ScoredPage struct {
	Index          int      `json:"index"`
	Score          float64  `json:"score"`
	MatchedPhrases []string `json:"matched_phrases,omitempty"`
	Boosters       []string `json:"boosters,omitempty"`
}

// RankedPageList is the ordered sequence of page indices, most relevant first.
type RankedPageList []int

// Window returns the pass-th (1-based) disjoint slice of size n.
// It returns nil once the list is exhausted.
func (l RankedPageList) Window(pass, n int) []int {
	if pass < 1 || n < 1 {
		return nil
	}
	start := (pass - 1) * n
	if start >= len(l) {
		return nil
	}
	end := start + n
	if end > len(l) {
		end = len(l)
	}
	out := make([]int, end-start)
	copy(out, l[start:end])
	return out
}

// Content is one materialized page handed to the model call.
// Data carries rendered bytes (e.g. PNG); Text carries extracted text.
type Content struct {
	PageIndex int    `json:"page_index"`
	MIMEType  string `json:"mime_type"`
	Data      []byte `json:"-"`
	Text      string `json:"text,omitempty"`
}

// Empty reports whether the page could not be materialized.
func (c Content) Empty() bool {
	return len(c.Data) == 0 && c.Text == ""
}
