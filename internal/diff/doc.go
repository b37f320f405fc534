// Package diff parses unified diff text and maps new-side file line numbers
// to diff positions for GitHub PR review comments.
//
// Position is 1-indexed from a file's first @@ hunk header and cumulative
// across all hunks of that file: every content line (context, addition,
// deletion) consumes one position, and the counter does not reset between
// hunks. Only additions and context lines are addressable by new-side line
// number; deletions consume a position but cannot be resolved.
package diff
