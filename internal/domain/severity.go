package domain

import "strings"

// Severity ranks security findings. Higher values sort first.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityModerate
	SeveritySevere
)

// ParseSeverity maps the model's severity label to a Severity.
// Unrecognized labels map to SeverityLow so the finding is kept
// rather than dropped; callers may log the original label.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SEVERE":
		return SeveritySevere
	case "MODERATE":
		return SeverityModerate
	case "LOW":
		return SeverityLow
	default:
		return SeverityLow
	}
}

// String returns the canonical upper-case label.
func (s Severity) String() string {
	switch s {
	case SeveritySevere:
		return "SEVERE"
	case SeverityModerate:
		return "MODERATE"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the severity is one of the three ranked levels.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityModerate || s == SeveritySevere
}
