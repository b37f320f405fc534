package pipeline

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/example/reviewbot/internal/diff"
	"github.com/example/reviewbot/internal/domain"
)

const (
	defaultMaxPromptTokens = 16000
	defaultMaxSnippets     = 6
)

// TokenCounter estimates the token count of a text for budget enforcement.
type TokenCounter func(text string) int

// PromptBuilder renders the per-stage prompts. It enforces a maximum
// prompt size by truncating the diff at whole-hunk boundaries and by
// capping the number of knowledge snippets, preferring snippets whose
// paths share the longest prefix with files touched by the diff.
type PromptBuilder struct {
	countTokens     TokenCounter
	maxPromptTokens int
	maxSnippets     int
	templates       map[Stage]*template.Template
}

// NewPromptBuilder constructs a builder. A zero maxPromptTokens or
// maxSnippets falls back to the defaults.
func NewPromptBuilder(counter TokenCounter, maxPromptTokens, maxSnippets int) *PromptBuilder {
	if counter == nil {
		// Rough character heuristic when no tokenizer is wired.
		counter = func(text string) int { return len(text) / 4 }
	}
	if maxPromptTokens <= 0 {
		maxPromptTokens = defaultMaxPromptTokens
	}
	if maxSnippets <= 0 {
		maxSnippets = defaultMaxSnippets
	}
	return &PromptBuilder{
		countTokens:     counter,
		maxPromptTokens: maxPromptTokens,
		maxSnippets:     maxSnippets,
		templates: map[Stage]*template.Template{
			StageInitial:         template.Must(template.New("initial").Parse(initialTemplate)),
			StageLineComments:    template.Must(template.New("line").Parse(lineCommentTemplate)),
			StageGeneralComments: template.Must(template.New("general").Parse(generalCommentTemplate)),
			StageSecurity:        template.Must(template.New("security").Parse(securityTemplate)),
			StageSummary:         template.Must(template.New("summary").Parse(summaryTemplate)),
		},
	}
}

// promptData holds everything the stage templates can reference.
type promptData struct {
	Guidelines string
	Diff       string
	Snippets   []domain.Snippet
	Locations  string
	Topics     string
	Findings   string
}

// InitialAnalysis renders the stage-1 prompt from the whole diff,
// guidelines, and the selected knowledge snippets.
func (b *PromptBuilder) InitialAnalysis(fs diff.FileSet, guidelines string, snippets []domain.Snippet) (string, error) {
	selected := b.selectSnippets(snippets, fs.ChangedPaths())
	reserved := b.countTokens(guidelines)
	for _, s := range selected {
		reserved += b.countTokens(s.Content)
	}
	return b.render(StageInitial, promptData{
		Guidelines: guidelines,
		Diff:       b.renderDiff(fs, b.maxPromptTokens-reserved),
		Snippets:   selected,
	})
}

// LineComments renders the stage-2 prompt for the flagged locations.
func (b *PromptBuilder) LineComments(fs diff.FileSet, guidelines string, candidates []LineCandidate) (string, error) {
	var locs strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&locs, "- File: %s, Line: %d, Reason: %s\n", c.File, c.Line, c.Reason)
	}
	return b.render(StageLineComments, promptData{
		Guidelines: guidelines,
		Diff:       b.renderDiff(fs, b.maxPromptTokens-b.countTokens(guidelines)),
		Locations:  locs.String(),
	})
}

// GeneralComments renders the stage-3 prompt for the flagged topics.
func (b *PromptBuilder) GeneralComments(fs diff.FileSet, guidelines string, topics []TopicCandidate) (string, error) {
	var list strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&list, "- %s\n", t.Topic)
	}
	return b.render(StageGeneralComments, promptData{
		Guidelines: guidelines,
		Diff:       b.renderDiff(fs, b.maxPromptTokens-b.countTokens(guidelines)),
		Topics:     list.String(),
	})
}

// SecurityIssues renders the stage-4 prompt for the flagged vulnerabilities.
func (b *PromptBuilder) SecurityIssues(fs diff.FileSet, guidelines string, candidates []SecurityCandidate) (string, error) {
	var locs strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&locs, "- File: %s, Line: %d, Description: %s\n", c.File, c.Line, c.Description)
	}
	return b.render(StageSecurity, promptData{
		Guidelines: guidelines,
		Diff:       b.renderDiff(fs, b.maxPromptTokens-b.countTokens(guidelines)),
		Locations:  locs.String(),
	})
}

// Summary renders the stage-5 prompt from every finding produced so far.
func (b *PromptBuilder) Summary(line, general, security []domain.Finding) (string, error) {
	var text strings.Builder
	text.WriteString("--- Line Comments ---\n")
	for _, f := range line {
		fmt.Fprintf(&text, "%s:%d: %s\n", f.File, f.Line, f.Message)
	}
	text.WriteString("--- General Comments ---\n")
	for _, f := range general {
		fmt.Fprintf(&text, "%s\n", f.Message)
	}
	text.WriteString("--- Security Issues ---\n")
	for _, f := range security {
		fmt.Fprintf(&text, "%s:%d: %s (Severity: %s)\n", f.File, f.Line, f.Message, f.Severity)
	}
	return b.render(StageSummary, promptData{Findings: text.String()})
}

func (b *PromptBuilder) render(stage Stage, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := b.templates[stage].Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", stage, err)
	}
	return buf.String(), nil
}

// renderDiff rebuilds diff text from the parsed inventory, appending
// whole hunks until the token budget is exhausted. Hunks are never split.
func (b *PromptBuilder) renderDiff(fs diff.FileSet, budget int) string {
	if budget < 256 {
		budget = 256
	}

	var out strings.Builder
	used := 0
	for _, file := range fs.Files {
		header := fmt.Sprintf("--- a/%s\n+++ b/%s\n", file.Path, file.Path)
		headerTokens := b.countTokens(header)
		wroteHeader := false
		for _, hunk := range file.Hunks {
			text := renderHunk(hunk)
			cost := b.countTokens(text)
			if !wroteHeader {
				cost += headerTokens
			}
			if used+cost > budget {
				out.WriteString("[diff truncated to fit the prompt budget]\n")
				return out.String()
			}
			if !wroteHeader {
				out.WriteString(header)
				used += headerTokens
				wroteHeader = true
			}
			out.WriteString(text)
			used += b.countTokens(text)
		}
	}
	return out.String()
}

func renderHunk(h diff.Hunk) string {
	var out strings.Builder
	fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
	for _, line := range h.Lines {
		switch line.Kind {
		case diff.LineAdded:
			out.WriteString("+")
		case diff.LineRemoved:
			out.WriteString("-")
		default:
			out.WriteString(" ")
		}
		out.WriteString(line.Content)
		out.WriteString("\n")
	}
	return out.String()
}

// selectSnippets caps the snippet list, preferring snippets whose paths
// share the longest directory prefix with any changed file.
func (b *PromptBuilder) selectSnippets(snippets []domain.Snippet, changedPaths []string) []domain.Snippet {
	if len(snippets) == 0 {
		return nil
	}
	changedDirs := make([]string, 0, len(changedPaths))
	for _, p := range changedPaths {
		changedDirs = append(changedDirs, dirOf(p))
	}

	type scored struct {
		snippet domain.Snippet
		score   int
	}
	ranked := make([]scored, 0, len(snippets))
	for _, s := range snippets {
		best := 0
		snippetDir := dirOf(s.Path)
		for _, d := range changedDirs {
			if affinity := sharedSegments(snippetDir, d); affinity > best {
				best = affinity
			}
		}
		ranked = append(ranked, scored{snippet: s, score: best})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	max := b.maxSnippets
	if len(ranked) < max {
		max = len(ranked)
	}
	selected := make([]domain.Snippet, 0, max)
	for _, r := range ranked[:max] {
		selected = append(selected, r.snippet)
	}
	return selected
}

func dirOf(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[:idx]
	}
	return ""
}

// sharedSegments counts leading path segments two directories have in common.
func sharedSegments(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	segsA := strings.Split(a, "/")
	segsB := strings.Split(b, "/")
	n := 0
	for n < len(segsA) && n < len(segsB) && segsA[n] == segsB[n] {
		n++
	}
	return n
}

const initialTemplate = `You are an expert code reviewer. Analyze the provided code changes (diff)
against the review guidelines and identify potential areas for feedback.
Do NOT write the full comment text yet, only identify the areas.
{{if .Snippets}}
<knowledge_base_context>
The following reference material comes from a knowledge base of project
conventions and best practices. Use it to inform your review.
{{range .Snippets}}<file path="{{.Path}}">
{{.Content}}
</file>
{{end}}</knowledge_base_context>
{{end}}
<review_guidelines>
{{.Guidelines}}
</review_guidelines>

<diff>
{{.Diff}}
</diff>

Respond with a single JSON object of this exact shape:
{
  "potential_line_comments": [{"file": "path", "line": 1, "reason": "brief reason"}],
  "potential_general_comments": [{"topic": "brief topic"}],
  "potential_security_issues": [{"file": "path", "line": 1, "description": "brief description"}]
}
Line numbers refer to the new version of each file. Ensure the output is valid JSON.`

const lineCommentTemplate = `You are an expert code reviewer. Based on the code changes and guidelines,
write detailed, actionable line comments for the identified locations.
Focus on clarity and concrete fixes.

<review_guidelines>
{{.Guidelines}}
</review_guidelines>

<diff>
{{.Diff}}
</diff>

<identified_locations>
{{.Locations}}</identified_locations>

Respond with a JSON array of objects with "file", "line", and "comment" fields.
Line numbers refer to the new version of each file. Ensure the output is valid JSON.`

const generalCommentTemplate = `You are an expert code reviewer. Based on the code changes and guidelines,
write detailed general comments for the identified topics. These apply to
the pull request as a whole, not to specific lines.

<review_guidelines>
{{.Guidelines}}
</review_guidelines>

<diff>
{{.Diff}}
</diff>

<identified_topics>
{{.Topics}}</identified_topics>

Respond with a JSON array of objects with a "comment" field.
Ensure the output is valid JSON.`

const securityTemplate = `You are an expert security reviewer. Based on the code changes and
guidelines, write detailed security findings for the identified potential
vulnerabilities. Assign each a severity of "SEVERE", "MODERATE", or "LOW"
and include an actionable mitigation.

<review_guidelines>
{{.Guidelines}}
</review_guidelines>

<diff>
{{.Diff}}
</diff>

<identified_security_issues>
{{.Locations}}</identified_security_issues>

Respond with a JSON array of objects with "file", "line", "issue", and
"severity" fields. Line numbers refer to the new version of each file.
Ensure the output is valid JSON.`

const summaryTemplate = `Summarize the following code review feedback into a concise, high-level
overview. Highlight the most critical points. Sections may be empty.

<all_review_feedback>
{{.Findings}}
</all_review_feedback>

Respond with the summary text only.`
