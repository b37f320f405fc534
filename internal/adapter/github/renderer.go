package github

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/example/reviewbot/internal/domain"
)

var titleCaser = cases.Title(language.English)

// severityEmoji marks security findings in the posted comment.
func severityEmoji(s domain.Severity) string {
	switch s {
	case domain.SeveritySevere:
		return "🔴"
	case domain.SeverityModerate:
		return "🟠"
	case domain.SeverityLow:
		return "🟡"
	default:
		return "⚪"
	}
}

// heading renders a markdown section heading in title case.
func heading(text, emoji string) string {
	return fmt.Sprintf("### %s %s", titleCaser.String(text), emoji)
}

// RenderInlineComment renders the body of one position-anchored review
// comment.
func RenderInlineComment(f domain.Finding) string {
	var b strings.Builder
	if f.Severity != domain.SeverityUnknown {
		fmt.Fprintf(&b, "**Severity:** %s\n\n", f.Severity)
	}
	b.WriteString(f.Message)
	return b.String()
}

// RenderSummaryComment renders the main issue comment: summary first,
// then security issues grouped with severity markers, then general
// comments. Returns the empty string when there is nothing to say.
func RenderSummaryComment(result domain.ReviewResult) string {
	var parts []string
	if result.Summary != "" {
		parts = append(parts, result.Summary, "")
	}

	if len(result.SecurityIssues) > 0 {
		parts = append(parts, heading("security issues", "🚨"))
		for _, issue := range result.SecurityIssues {
			location := issue.File
			if issue.Line > 0 {
				location = fmt.Sprintf("%s:L%d", issue.File, issue.Line)
			}
			parts = append(parts, fmt.Sprintf("- %s **%s** (%s): %s",
				severityEmoji(issue.Severity), location, issue.Severity, issue.Message))
		}
		parts = append(parts, "")
	}

	if len(result.GeneralComments) > 0 {
		parts = append(parts, heading("general comments", "📄"))
		for _, comment := range result.GeneralComments {
			parts = append(parts, fmt.Sprintf("- %s", comment.Message))
		}
		parts = append(parts, "")
	}

	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

// RenderResult renders a full review as standalone markdown, used by
// the local review command.
func RenderResult(result domain.ReviewResult) string {
	var b strings.Builder
	b.WriteString(heading("review summary", "📝"))
	b.WriteString("\n\n")
	b.WriteString(result.Summary)
	b.WriteString("\n")

	if len(result.LineComments) > 0 {
		b.WriteString("\n")
		b.WriteString(heading("line comments", "💬"))
		b.WriteString("\n")
		for _, comment := range result.LineComments {
			fmt.Fprintf(&b, "- `%s:%d` %s\n", comment.File, comment.Line, comment.Message)
		}
	}
	if body := RenderSummaryComment(domain.ReviewResult{
		SecurityIssues:  result.SecurityIssues,
		GeneralComments: result.GeneralComments,
	}); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}
