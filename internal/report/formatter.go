// Package report renders scored submissions for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-proof-must-flow/internal/cli"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// Status is the pass/partial/fail grade of one check.
type Status string

// Check statuses.
const (
	StatusPass    Status = "PASS"
	StatusPartial Status = "PARTIAL"
	StatusFail    Status = "FAIL"
)

// StatusFor grades a check score.
func StatusFor(score float64) Status {
	switch {
	case score >= 0.8:
		return StatusPass
	case score >= 0.4:
		return StatusPartial
	default:
		return StatusFail
	}
}

// Assessment grades a composite score.
func Assessment(score float64) string {
	switch {
	case score >= 0.8:
		return "EXCELLENT"
	case score >= 0.6:
		return "GOOD"
	case score >= 0.4:
		return "FAIR"
	default:
		return "NEEDS IMPROVEMENT"
	}
}

// Formatter renders reports as styled text.
type Formatter struct {
	styles *Styles
	// MaxFindings limits the comments shown per check; 0 shows only the summary.
	MaxFindings int
}

// NewFormatter creates a formatter with default styles.
func NewFormatter() *Formatter {
	return &Formatter{
		styles:      NewStyles(),
		MaxFindings: 5,
	}
}

// Format renders the response and, when present, the report behind it.
func (f *Formatter) Format(name string, resp *model.ProofResponse, report *model.Report) string {
	if resp == nil {
		return f.styles.Error.Render("No proof available")
	}

	sections := []string{f.formatHeader(name, report)}

	if report != nil {
		sections = append(sections,
			f.formatComposite(report.Score),
			f.formatChecks(report))
	}

	sections = append(sections, f.formatResponse(resp))
	return strings.Join(sections, "\n\n")
}

func (f *Formatter) formatHeader(name string, report *model.Report) string {
	title := f.styles.Title.Render(cli.ChartIcon + " Proof Report: " + name)
	if report == nil {
		return title
	}

	kind := fmt.Sprintf("Domain: %s (%s dialect)", report.Domain, report.Dialect)
	generated := fmt.Sprintf("Report %s, generated %s", report.ID, report.GeneratedAt.Format(time.RFC3339))

	return fmt.Sprintf("%s\n%s\n%s", title, f.styles.Subtitle.Render(kind), f.styles.Subtle.Render(generated))
}

func (f *Formatter) formatComposite(score float64) string {
	style := f.styles.ForStatus(StatusFor(score))

	text := fmt.Sprintf("Composite: %.1f%% (%s)", score*100, Assessment(score))
	bar := f.styles.RenderProgressBar(score, 30)

	return fmt.Sprintf("%s\n%s", style.Bold(true).Render(text), style.Render(bar))
}

func (f *Formatter) formatChecks(report *model.Report) string {
	title := f.styles.Subtitle.Render("Checks:")

	nameWidth := 0
	for _, name := range report.Order {
		nameWidth = max(nameWidth, len(name))
	}

	lines := []string{title}
	for _, name := range report.Order {
		res := report.Checks[name]
		status := StatusFor(res.Score)
		style := f.styles.ForStatus(status)

		label := fmt.Sprintf("%-7s", status)
		lines = append(lines, fmt.Sprintf("%s %-*s %6.1f%%",
			style.Render(label), nameWidth, name, res.Score*100))

		lines = append(lines, f.formatComments(res.Comments)...)
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) formatComments(comments []string) []string {
	if len(comments) == 0 {
		return nil
	}

	out := []string{f.styles.Subtle.Render("    " + comments[0])}
	findings := comments[1:]
	shown := min(len(findings), f.MaxFindings)
	for _, c := range findings[:shown] {
		out = append(out, f.styles.Normal.Render("    • "+c))
	}
	if hidden := len(findings) - shown; hidden > 0 {
		out = append(out, f.styles.Subtle.Render(fmt.Sprintf("    ... and %d more", hidden)))
	}
	return out
}

func (f *Formatter) formatResponse(resp *model.ProofResponse) string {
	verdict := cli.FormatSuccess("Valid")
	if !resp.Valid {
		verdict = cli.FormatError("Invalid")
		if reason, ok := resp.Attributes["reason"].(string); ok && reason != "" {
			verdict += f.styles.Subtle.Render(" (" + reason + ")")
		}
	}

	body := strings.Join([]string{
		verdict,
		fmt.Sprintf("Score:      %s", f.styles.Score.Render(fmt.Sprintf("%.4f", resp.Score))),
		fmt.Sprintf("Quality:    %.4f", resp.Quality),
		fmt.Sprintf("Uniqueness: %.1f", resp.Uniqueness),
	}, "\n")

	return f.styles.Box.Render(body)
}
