package ranking

import (
	"fmt"
	"strings"
)

// Default weights for scoring components
const (
	defaultKeywordWeight = 1.0
	defaultBoosterBonus  = 5.0
)

// KeywordRule is a phrase and the weight it adds to a page that contains it.
type KeywordRule struct {
	Phrase string  `json:"phrase"`
	Weight float64 `json:"weight"`
}

// Config is the scoring vocabulary. It is copied into a Ranker at construction.
type Config struct {
	Rules        []KeywordRule `json:"rules"`
	Boosters     []string      `json:"boosters"`
	BoosterBonus float64       `json:"booster_bonus"`
}

// DefaultConfig returns the ESG disclosure vocabulary.
func DefaultConfig() Config {
	phrases := []string{
		"scope 1",
		"scope 2",
		"market-based",
		"tco2e",
		"ghg emissions",
		"assurance",
		"independent",
		"target",
		"2030",
		"net zero",
		"action plan",
		"strategy",
	}
	rules := make([]KeywordRule, 0, len(phrases))
	for _, p := range phrases {
		rules = append(rules, KeywordRule{Phrase: p, Weight: defaultKeywordWeight})
	}
	return Config{
		Rules:        rules,
		Boosters:     []string{"performance data", "sustainability table", "esg data"},
		BoosterBonus: defaultBoosterBonus,
	}
}

// Validate checks that every phrase is non-empty and every weight is positive.
func (c Config) Validate() error {
	for i, r := range c.Rules {
		if strings.TrimSpace(r.Phrase) == "" {
			return fmt.Errorf("rule %d: phrase cannot be empty", i)
		}
		if r.Weight <= 0 {
			return fmt.Errorf("rule %q: weight must be positive, got %v", r.Phrase, r.Weight)
		}
	}
	for i, b := range c.Boosters {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("booster %d: phrase cannot be empty", i)
		}
	}
	if len(c.Boosters) > 0 && c.BoosterBonus <= 0 {
		return fmt.Errorf("booster bonus must be positive, got %v", c.BoosterBonus)
	}
	return nil
}

// clone lowercases phrases once so scoring only lowercases the page text.
func (c Config) clone() Config {
	out := Config{
		Rules:        make([]KeywordRule, len(c.Rules)),
		Boosters:     make([]string, len(c.Boosters)),
		BoosterBonus: c.BoosterBonus,
	}
	for i, r := range c.Rules {
		out.Rules[i] = KeywordRule{Phrase: strings.ToLower(r.Phrase), Weight: r.Weight}
	}
	for i, b := range c.Boosters {
		out.Boosters[i] = strings.ToLower(b)
	}
	return out
}

// scoreText sums the weights of every rule whose phrase occurs in text, plus the bonus
// for each booster phrase. Returns the score and the matched rule and booster phrases.
func scoreText(cfg Config, text string) (float64, []string, []string) {
	if strings.TrimSpace(text) == "" {
		return 0, nil, nil
	}
	lower := strings.ToLower(text)

	score := 0.0
	var matched, boosters []string
	for _, r := range cfg.Rules {
		if strings.Contains(lower, r.Phrase) {
			score += r.Weight
			matched = append(matched, r.Phrase)
		}
	}
	for _, b := range cfg.Boosters {
		if strings.Contains(lower, b) {
			score += cfg.BoosterBonus
			boosters = append(boosters, b)
		}
	}
	return score, matched, boosters
}
