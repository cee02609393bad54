// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/esg-extractor/internal/extraction"
	"github.com/jonathan/esg-extractor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRanking outputs the top scoring pages with the phrases that matched.
func (p *Printer) PrintRanking(doc string, scored []types.ScoredPage) {
	if len(scored) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Document: %s\n", doc))
	sb.WriteString(fmt.Sprintf("Pages ranked: %d\n\n", len(scored)))

	count := min(len(scored), maxItemsToShow)
	for i := 0; i < count; i++ {
		page := scored[i]
		sb.WriteString(fmt.Sprintf("#%d  page %d  score %.0f\n", i+1, page.Index+1, page.Score))
		if len(page.Boosters) > 0 {
			sb.WriteString(fmt.Sprintf("    Boosters: %s\n", strings.Join(page.Boosters, ", ")))
		}
		if len(page.MatchedPhrases) > 0 {
			phrases := strings.Join(page.MatchedPhrases, ", ")
			if len(phrases) > 40 {
				phrases = phrases[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf("    Matched: %s\n", phrases))
		}
	}

	if len(scored) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more pages", len(scored)-maxItemsToShow))
	}

	p.printBox("PAGE RANKING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPasses outputs one line per extraction pass.
func (p *Printer) PrintPasses(passes []extraction.PassReport, reason extraction.Reason) {
	var sb strings.Builder
	for _, pass := range passes {
		sb.WriteString(fmt.Sprintf("Pass %d: %d pages, %s (%dms)\n",
			pass.Pass, len(pass.Pages), pass.Outcome, pass.Elapsed.Milliseconds()))
		if len(pass.Reported) > 0 {
			sb.WriteString(fmt.Sprintf("  found:   %s\n", strings.Join(pass.Reported, ", ")))
		}
		if len(pass.MissingAfter) > 0 {
			sb.WriteString(fmt.Sprintf("  missing: %s\n", strings.Join(pass.MissingAfter, ", ")))
		}
		if pass.Error != "" {
			sb.WriteString(fmt.Sprintf("  error:   %s\n", pass.Error))
		}
	}
	sb.WriteString(fmt.Sprintf("Stopped: %s", reason))

	p.printBox("EXTRACTION PASSES", sb.String())
}

// PrintRecord outputs the extracted record.
func (p *Printer) PrintRecord(rec *types.ESGRecord, missing []string) {
	if rec == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Company:    %s\n", strOr(rec.CompanyName)))
	if rec.ReportingYear != nil {
		sb.WriteString(fmt.Sprintf("Year:       %d\n", *rec.ReportingYear))
	} else {
		sb.WriteString("Year:       -\n")
	}
	sb.WriteString(fmt.Sprintf("Scope 1:    %s\n", emission(rec.Scope1)))
	sb.WriteString(fmt.Sprintf("Scope 2 MB: %s\n", emission(rec.Scope2Market)))
	switch {
	case rec.AssurancePresent == nil:
		sb.WriteString("Assurance:  -\n")
	case *rec.AssurancePresent:
		sb.WriteString("Assurance:  yes\n")
	default:
		sb.WriteString("Assurance:  no\n")
	}

	if len(rec.Targets) > 0 {
		sb.WriteString("Targets:\n")
		for _, t := range rec.Targets {
			sb.WriteString(fmt.Sprintf("  • %d: %s", t.TargetYear, strOr(t.TargetReductionPercentage)))
			if t.BaseYear != nil {
				sb.WriteString(fmt.Sprintf(" (base %d)", *t.BaseYear))
			}
			sb.WriteString("\n")
		}
	}
	if rec.ActionPlanSummary != nil {
		sb.WriteString(fmt.Sprintf("Action plan: %s\n", *rec.ActionPlanSummary))
	}
	if len(missing) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️  Missing: %s\n", strings.Join(missing, ", ")))
	}

	p.printBox("EXTRACTED RECORD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary outputs batch totals.
func (p *Printer) PrintSummary(total, complete, insufficient, failed int) {
	content := fmt.Sprintf("Documents:         %d\nComplete:          %d\nInsufficient data: %d\nFailed:            %d",
		total, complete, insufficient, failed)
	p.printBox("BATCH SUMMARY", content)
}

func strOr(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func emission(e types.EmissionValue) string {
	if e.Value == nil {
		return "-"
	}
	if e.Unit == nil {
		return fmt.Sprintf("%g", *e.Value)
	}
	return fmt.Sprintf("%g %s", *e.Value, *e.Unit)
}
