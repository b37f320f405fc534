package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/reviewbot/internal/domain"
)

// Unparsable indicates a stage response that could not be decoded at all.
// The orchestrator treats it as a skipped stage rather than a fatal error.
type Unparsable struct {
	Stage  Stage
	Reason string
}

func (e *Unparsable) Error() string {
	return fmt.Sprintf("stage %s response unparsable: %s", e.Stage, e.Reason)
}

// LineCandidate is a location flagged by the initial analysis for a
// detailed line comment.
type LineCandidate struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// TopicCandidate is a PR-wide topic flagged by the initial analysis.
type TopicCandidate struct {
	Topic string `json:"topic"`
}

// SecurityCandidate is a potential vulnerability flagged by the initial
// analysis.
type SecurityCandidate struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Description string `json:"description"`
}

// Candidates is the structured output of the initial analysis stage.
type Candidates struct {
	Lines    []LineCandidate    `json:"potential_line_comments"`
	Topics   []TopicCandidate   `json:"potential_general_comments"`
	Security []SecurityCandidate `json:"potential_security_issues"`
}

// Empty reports whether the analysis flagged nothing at all.
func (c Candidates) Empty() bool {
	return len(c.Lines) == 0 && len(c.Topics) == 0 && len(c.Security) == 0
}

// Greedy to the last fence so JSON containing example code blocks still
// extracts whole.
var jsonFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*)```")

// extractJSON strips a markdown code fence if present, otherwise returns
// the trimmed raw text.
func extractJSON(text string) string {
	if m := jsonFenceRegex.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ParseCandidates decodes the initial-analysis response. Individual
// malformed entries are dropped; a response that is not JSON at all
// yields an Unparsable error.
func ParseCandidates(raw string) (Candidates, int, error) {
	var decoded Candidates
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decoded); err != nil {
		return Candidates{}, 0, &Unparsable{Stage: StageInitial, Reason: err.Error()}
	}

	dropped := 0
	valid := Candidates{}
	for _, c := range decoded.Lines {
		if c.File == "" || c.Line <= 0 {
			dropped++
			continue
		}
		valid.Lines = append(valid.Lines, c)
	}
	for _, c := range decoded.Topics {
		if strings.TrimSpace(c.Topic) == "" {
			dropped++
			continue
		}
		valid.Topics = append(valid.Topics, c)
	}
	for _, c := range decoded.Security {
		if c.File == "" || c.Line <= 0 || strings.TrimSpace(c.Description) == "" {
			dropped++
			continue
		}
		valid.Security = append(valid.Security, c)
	}
	return valid, dropped, nil
}

type lineCommentWire struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Comment string `json:"comment"`
}

// ParseLineComments decodes the line-comment stage response into line
// findings, dropping entries missing a file, line, or comment.
func ParseLineComments(raw string) ([]domain.Finding, int, error) {
	var decoded []lineCommentWire
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decoded); err != nil {
		return nil, 0, &Unparsable{Stage: StageLineComments, Reason: err.Error()}
	}

	findings := make([]domain.Finding, 0, len(decoded))
	dropped := 0
	for _, c := range decoded {
		if c.File == "" || c.Line <= 0 || strings.TrimSpace(c.Comment) == "" {
			dropped++
			continue
		}
		findings = append(findings, domain.Finding{
			Kind:    domain.KindLine,
			File:    c.File,
			Line:    c.Line,
			Message: c.Comment,
		})
	}
	return findings, dropped, nil
}

type generalCommentWire struct {
	Comment string `json:"comment"`
}

// ParseGeneralComments decodes the general-comment stage response.
func ParseGeneralComments(raw string) ([]domain.Finding, int, error) {
	var decoded []generalCommentWire
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decoded); err != nil {
		return nil, 0, &Unparsable{Stage: StageGeneralComments, Reason: err.Error()}
	}

	findings := make([]domain.Finding, 0, len(decoded))
	dropped := 0
	for _, c := range decoded {
		if strings.TrimSpace(c.Comment) == "" {
			dropped++
			continue
		}
		findings = append(findings, domain.Finding{
			Kind:    domain.KindGeneral,
			Message: c.Comment,
		})
	}
	return findings, dropped, nil
}

type securityIssueWire struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
}

// ParseSecurityIssues decodes the security stage response. Severity
// labels outside SEVERE/MODERATE/LOW downgrade to LOW rather than
// dropping the finding.
func ParseSecurityIssues(raw string) ([]domain.Finding, int, error) {
	var decoded []securityIssueWire
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decoded); err != nil {
		return nil, 0, &Unparsable{Stage: StageSecurity, Reason: err.Error()}
	}

	findings := make([]domain.Finding, 0, len(decoded))
	dropped := 0
	for _, c := range decoded {
		if c.File == "" || c.Line <= 0 || strings.TrimSpace(c.Issue) == "" {
			dropped++
			continue
		}
		findings = append(findings, domain.Finding{
			Kind:     domain.KindSecurity,
			File:     c.File,
			Line:     c.Line,
			Severity: domain.ParseSeverity(c.Severity),
			Message:  c.Issue,
		})
	}
	return findings, dropped, nil
}
