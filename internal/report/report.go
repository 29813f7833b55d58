// Package report renders a leave-one-out table as a Markdown or HTML summary.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"loostaar/domain/loo"
)

// DefaultTop is how many ranked variants a report lists
const DefaultTop = 10

// Markdown renders the run summary, the top ranked variants and any warnings
func Markdown(t *loo.Table, top int) string {
	if top <= 0 {
		top = DefaultTop
	}
	s := loo.Summarize(t)
	var b strings.Builder

	title := t.Label
	if title == "" {
		title = "Leave-one-out influence"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Run | `%s` |\n", t.RunID)
	if t.NullModel != "" {
		fmt.Fprintf(&b, "| Null model | `%s` |\n", t.NullModel)
	}
	fmt.Fprintf(&b, "| Samples | %d |\n", t.NumSamples)
	fmt.Fprintf(&b, "| Variants | %d (%d scored, %d missing) |\n", s.Variants, s.Scored, s.Missing)
	fmt.Fprintf(&b, "| Baseline p | %s |\n", formatP(t.BaselinePValue))
	fmt.Fprintf(&b, "| MAF cutoff | %g |\n", t.Parameters.MAFCutoff)
	if len(t.Frequencies) > 0 {
		fmt.Fprintf(&b, "| Rare variants | %d (threshold %d) |\n", t.RareVariants, t.Parameters.RareVariantThreshold)
	}
	if !t.StartedAt.IsZero() && !t.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "| Duration | %s |\n", t.Duration().Round(1e6))
	}
	b.WriteString("\n")

	b.WriteString("## Influence\n\n")
	if s.Scored == 0 {
		b.WriteString("No variant could be scored.\n\n")
	} else {
		fmt.Fprintf(&b, "%d drivers and %d diluters. ", s.Drivers, s.Diluters)
		fmt.Fprintf(&b, "Mean ΔLog10P %.4f, median %.4f, SD %.4f, max |Δ| %.4f.\n\n",
			s.MeanDelta, s.MedianDelta, s.StdDevDelta, s.MaxAbsDelta)
		if s.TopDriver != "" {
			fmt.Fprintf(&b, "Strongest driver: **%s**. ", s.TopDriver)
		}
		if s.TopDiluter != "" {
			fmt.Fprintf(&b, "Strongest diluter: **%s**.", s.TopDiluter)
		}
		b.WriteString("\n\n")

		ranked := loo.Ranked(t)
		if len(ranked) > top {
			ranked = ranked[:top]
		}
		b.WriteString("| Rank | Variant | LOO p | ΔLog10P | Role | MAF |\n|---|---|---|---|---|---|\n")
		for i, r := range ranked {
			maf := "-"
			if f, ok := t.Frequency(r.VariantID); ok {
				maf = fmt.Sprintf("%.4g", f.MAF)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %.4f | %s | %s |\n",
				i+1, r.VariantID, formatP(*r.LOOPValue), *r.DeltaLog10P, r.Role(), maf)
		}
		b.WriteString("\n")
	}

	if len(t.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range t.Warnings {
			where := "baseline"
			if !w.Baseline() {
				where = w.VariantID.String()
			}
			fmt.Fprintf(&b, "- `%s` %s: %s\n", w.Kind, where, escape(w.Message))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the Markdown report as a standalone page
func HTML(t *loo.Table, top int) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	r := html.NewRenderer(html.RendererOptions{
		Title: t.Label,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(Markdown(t, top)), p, r)
}

func formatP(p float64) string {
	if p != 0 && p < 1e-3 {
		return fmt.Sprintf("%.3e", p)
	}
	return fmt.Sprintf("%.4g", p)
}

func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
