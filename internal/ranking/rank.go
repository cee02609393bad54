// Package ranking orders a document's pages by how likely they are to carry the
// emissions disclosures the extractor looks for.
package ranking

import (
	"fmt"
	"sort"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Ranker scores pages against an immutable keyword vocabulary.
type Ranker struct {
	cfg Config
}

// NewRanker validates cfg and returns a Ranker holding its own copy of it.
func NewRanker(cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking config: %w", err)
	}
	return &Ranker{cfg: cfg.clone()}, nil
}

// Score returns the relevance score of a single page's text.
func (r *Ranker) Score(text string) float64 {
	score, _, _ := scoreText(r.cfg, text)
	return score
}

// Scored returns every page with its score breakdown, ordered by descending score.
// Equal scores keep document order. Pages with no text score 0 and are kept.
func (r *Ranker) Scored(pages []types.Page) []types.ScoredPage {
	scored := make([]types.ScoredPage, 0, len(pages))
	for _, p := range pages {
		score, matched, boosters := scoreText(r.cfg, p.Text)
		scored = append(scored, types.ScoredPage{
			Index:          p.Index,
			Score:          score,
			MatchedPhrases: matched,
			Boosters:       boosters,
		})
	}

	// Input order is not guaranteed to be document order, so ties fall back to the index.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	return scored
}

// Rank returns page indices ordered by descending score, ties by ascending index.
func (r *Ranker) Rank(pages []types.Page) types.RankedPageList {
	scored := r.Scored(pages)
	ranked := make(types.RankedPageList, 0, len(scored))
	for _, s := range scored {
		ranked = append(ranked, s.Index)
	}
	return ranked
}
