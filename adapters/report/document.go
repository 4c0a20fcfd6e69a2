package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gosobol/domain/gsa"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Document renders the full run report as Markdown.
func Document(s *gsa.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Sensitivity run %s\n\n", s.ID)
	fmt.Fprintf(&b, "- Scheme: %s, base samples %d, %d model evaluations\n", s.Scheme, s.BaseSamples, s.Rows)
	fmt.Fprintf(&b, "- Seed: %d\n", s.Seed)
	fmt.Fprintf(&b, "- Design fingerprint: `%s`\n", s.Fingerprint)
	fmt.Fprintf(&b, "- Finished: %s (%s)\n\n", s.FinishedAt.Format("2006-01-02 15:04:05 MST"), s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))

	b.WriteString("## Parameters\n\n")
	params := newTable(Markdown, "Name", "Distribution", "Low", "Default", "High")
	params.alignRight(3, 4, 5)
	for _, p := range s.Parameters {
		params.row(p.Name, p.Distribution, num(gsa.Float(p.Low)), num(gsa.Float(p.Default)), num(gsa.Float(p.High)))
	}
	b.WriteString(params.String())
	b.WriteString("\n\n")

	for _, out := range s.Outputs {
		fmt.Fprintf(&b, "## Output `%s`\n\n", out.Name)
		if out.Degenerate {
			b.WriteString("Zero variance: sensitivity indices are undefined.\n\n")
		} else {
			fmt.Fprintf(&b, "Mean %s, variance %s.\n\n", num(out.Mean), num(out.Variance))
		}
		b.WriteString(Ranking(out, Markdown, 0))
		b.WriteString("\n\n")
		if len(out.Pairs) > 0 {
			pairs := newTable(Markdown, "A", "B", "S2")
			pairs.alignRight(3)
			for _, p := range out.Pairs {
				pairs.row(p.A, p.B, num(p.S2))
			}
			b.WriteString("Second-order interactions:\n\n")
			b.WriteString(pairs.String())
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Simplified models\n\n")
	b.WriteString(Models(s, Markdown))
	b.WriteString("\n\n")

	if hasComparison(s) {
		b.WriteString("## Validation\n\n")
		b.WriteString(Comparison(s, Markdown))
		b.WriteString("\n\n")
	}

	if len(s.Violations) > 0 {
		b.WriteString("## S1 > ST beyond tolerance\n\n")
		for _, v := range s.Violations {
			fmt.Fprintf(&b, "- `%s` on `%s`: S1 %s, ST %s\n", v.Parameter, v.Output, num(v.S1), num(v.ST))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func hasComparison(s *gsa.RunSummary) bool {
	for _, out := range s.Outputs {
		if out.Comparison != nil {
			return true
		}
	}
	return false
}

// HTML renders the Markdown report as a complete HTML page. Names come from
// user-supplied models and inventories, so raw HTML in them is dropped.
func HTML(s *gsa.RunSummary) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank | html.SkipHTML | html.Safelink,
		Title: "Sensitivity run " + s.ID,
	})
	return markdown.ToHTML([]byte(Document(s)), p, r)
}

// JSON writes the summary as indented JSON.
func JSON(w io.Writer, s *gsa.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// TopParameters prints the ranking of every output, limited to limit rows.
func TopParameters(w io.Writer, s *gsa.RunSummary, limit int) error {
	for _, out := range s.Outputs {
		if _, err := fmt.Fprintf(w, "Impact %s\n%s\n\n", out.Name, Ranking(out, ASCII, limit)); err != nil {
			return err
		}
	}
	return nil
}
