package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/esg-extractor/internal/pdf"
	"github.com/jonathan/esg-extractor/internal/ranking"
	"github.com/jonathan/esg-extractor/internal/types"
)

var rankPagesCmd = &cobra.Command{
	Use:   "rank-pages <report.pdf>",
	Short: "Score a report's pages by ESG keyword density",
	Long:  "Extracts the text of every page, scores it against the ESG vocabulary and prints the pages most relevant first as JSON. No model is called.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRankPages,
}

var (
	rankTop     int
	rankOutFile string
)

// RankingOutput is the JSON printed by rank-pages.
type RankingOutput struct {
	Document  string               `json:"document"`
	PageCount int                  `json:"page_count"`
	Ranked    types.RankedPageList `json:"ranked"`
	Pages     []types.ScoredPage   `json:"pages"`
}

func init() {
	rankPagesCmd.Flags().IntVarP(&rankTop, "top", "n", 0, "Only list the top N pages (0 lists all)")
	rankPagesCmd.Flags().StringVar(&rankOutFile, "out", "", "Write the JSON to this file instead of stdout")

	rootCmd.AddCommand(rankPagesCmd)
}

func runRankPages(cmd *cobra.Command, args []string) error {
	out, err := rankPages(args[0], rankTop)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	return writeOutput(rankOutFile, data, cmd.OutOrStdout())
}

func rankPages(path string, top int) (*RankingOutput, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	ranker, err := ranking.NewRanker(ranking.DefaultConfig())
	if err != nil {
		return nil, err
	}

	scored := ranker.Scored(doc.Pages())
	if top > 0 && top < len(scored) {
		scored = scored[:top]
	}
	out := &RankingOutput{
		Document:  doc.Name(),
		PageCount: doc.PageCount(),
		Ranked:    make(types.RankedPageList, len(scored)),
		Pages:     scored,
	}
	for i, s := range scored {
		out.Ranked[i] = s.Index
	}
	return out, nil
}

