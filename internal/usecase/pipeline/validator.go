package pipeline

import (
	"fmt"
	"sort"

	"github.com/example/reviewbot/internal/diff"
	"github.com/example/reviewbot/internal/domain"
)

// ValidationReport records what the merger changed while assembling the
// final result, for observability.
type ValidationReport struct {
	Demoted    int // line findings demoted to general comments
	Duplicates int // findings collapsed by signature
}

// Assemble reconciles stage findings against the diff position map and
// produces the final ReviewResult.
//
// Line findings resolve (file, line) to a diff position; unresolvable ones
// are demoted to general comments rather than silently dropped. Findings of
// the same kind with identical (file, position, message) signatures collapse
// to one; a security finding never collapses into a matching line comment,
// so its severity survives.
// Security findings sort by severity descending, then file, then position.
func Assemble(positions diff.PositionSet, summary string, line, general, security []domain.Finding) (domain.ReviewResult, ValidationReport) {
	report := ValidationReport{}
	result := domain.ReviewResult{Summary: summary}

	var resolved []domain.Finding
	demoted := make([]domain.Finding, 0)
	for _, f := range line {
		pos, ok := positions.Resolve(f.File, f.Line)
		if !ok {
			report.Demoted++
			demoted = append(demoted, domain.Finding{
				Kind:    domain.KindGeneral,
				Message: fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Message),
			})
			continue
		}
		f.Position = pos
		resolved = append(resolved, f)
	}

	seen := make(map[string]bool)
	dedup := func(findings []domain.Finding) []domain.Finding {
		out := make([]domain.Finding, 0, len(findings))
		for _, f := range findings {
			sig := f.Kind.String() + "|" + f.Signature()
			if seen[sig] {
				report.Duplicates++
				continue
			}
			seen[sig] = true
			out = append(out, f)
		}
		return out
	}

	resolved = dedup(resolved)
	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].File != resolved[j].File {
			return resolved[i].File < resolved[j].File
		}
		return resolved[i].Position < resolved[j].Position
	})
	result.LineComments = resolved

	result.GeneralComments = dedup(append(general, demoted...))

	for i := range security {
		if pos, ok := positions.Resolve(security[i].File, security[i].Line); ok {
			security[i].Position = pos
		}
	}
	securityOut := dedup(security)
	sort.SliceStable(securityOut, func(i, j int) bool {
		a, b := securityOut[i], securityOut[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Line < b.Line
	})
	result.SecurityIssues = securityOut

	return result, report
}
