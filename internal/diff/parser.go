package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind represents the type of a line in a diff hunk.
type LineKind int

const (
	// LineContext is an unchanged line (starts with ' ').
	LineContext LineKind = iota
	// LineAdded is an added line (starts with '+').
	LineAdded
	// LineRemoved is a deleted line (starts with '-').
	LineRemoved
)

// Line is a single content line inside a hunk.
type Line struct {
	Kind     LineKind
	Content  string // without the prefix character
	OldLine  *int   // line number in the old file (nil for additions)
	NewLine  *int   // line number in the new file (nil for deletions)
	Position int    // cumulative diff position within the file
}

// Hunk is a contiguous block of lines under one @@ header.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// File is the reconstructed inventory for one file in the diff.
type File struct {
	Path  string
	Hunks []Hunk
}

// FileSet is the parse result for a whole multi-file diff.
// Skipped lists files whose hunks were abandoned due to a malformed
// hunk header; the rest of the diff is still parsed.
type FileSet struct {
	Files   []File
	Skipped []string
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse scans unified diff text into a FileSet. It never fails outright:
// a malformed hunk header abandons the remainder of that file's hunks and
// parsing resumes at the next file header. Binary and rename-only entries
// produce files with no hunks.
func Parse(text string) FileSet {
	result := FileSet{}
	if strings.TrimSpace(text) == "" {
		return result
	}

	var (
		current     *File
		currentHunk *Hunk
		position    int
		oldLine     int
		newLine     int
		skipFile    bool
	)

	flushHunk := func() {
		if current != nil && currentHunk != nil {
			current.Hunks = append(current.Hunks, *currentHunk)
		}
		currentHunk = nil
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			result.Files = append(result.Files, *current)
		}
		current = nil
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for _, line := range lines {
		// File header starts a new record and resets the position counter.
		if strings.HasPrefix(line, "diff --git ") {
			flushFile()
			current = &File{Path: pathFromGitHeader(line)}
			position = 0
			skipFile = false
			continue
		}

		if current == nil {
			// Diff fragments without a git header: synthesize a file record
			// from the +++ header so bare patches still parse.
			if strings.HasPrefix(line, "+++ b/") {
				current = &File{Path: strings.TrimPrefix(line, "+++ b/")}
				position = 0
				skipFile = false
			}
			continue
		}

		// The +++ side is authoritative for renames.
		if strings.HasPrefix(line, "+++ b/") {
			current.Path = strings.TrimPrefix(line, "+++ b/")
			continue
		}

		// Metadata lines between the file header and the first hunk.
		if strings.HasPrefix(line, "index ") ||
			strings.HasPrefix(line, "--- ") ||
			strings.HasPrefix(line, "+++ ") ||
			strings.HasPrefix(line, "new file mode") ||
			strings.HasPrefix(line, "deleted file mode") ||
			strings.HasPrefix(line, "old mode") ||
			strings.HasPrefix(line, "new mode") ||
			strings.HasPrefix(line, "similarity index") ||
			strings.HasPrefix(line, "rename from") ||
			strings.HasPrefix(line, "rename to") ||
			strings.HasPrefix(line, "Binary files ") ||
			strings.HasPrefix(line, "\\ ") {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			flushHunk()
			if skipFile {
				continue
			}
			hunk, ok := parseHunkHeader(line)
			if !ok {
				// Abandon this file's remaining hunks, keep parsing others.
				skipFile = true
				current.Hunks = nil
				result.Skipped = append(result.Skipped, current.Path)
				continue
			}
			currentHunk = &hunk
			oldLine = hunk.OldStart
			newLine = hunk.NewStart
			continue
		}

		if currentHunk == nil || skipFile {
			continue
		}

		position++
		parsed := Line{Position: position}
		if line == "" {
			// Blank context line whose leading space was stripped in
			// transit. It still occupies a diff position.
			parsed.Kind = LineContext
			parsed.OldLine = intPtr(oldLine)
			parsed.NewLine = intPtr(newLine)
			oldLine++
			newLine++
			currentHunk.Lines = append(currentHunk.Lines, parsed)
			continue
		}
		switch line[0] {
		case '+':
			parsed.Kind = LineAdded
			parsed.Content = line[1:]
			parsed.NewLine = intPtr(newLine)
			newLine++
		case '-':
			parsed.Kind = LineRemoved
			parsed.Content = line[1:]
			parsed.OldLine = intPtr(oldLine)
			oldLine++
		default:
			// ' ' prefix, or no prefix at all in sloppy diffs.
			parsed.Kind = LineContext
			parsed.Content = strings.TrimPrefix(line, " ")
			parsed.OldLine = intPtr(oldLine)
			parsed.NewLine = intPtr(newLine)
			oldLine++
			newLine++
		}
		currentHunk.Lines = append(currentHunk.Lines, parsed)
	}

	flushFile()
	return result
}

// ChangedPaths returns the paths of all files in the diff, in order.
func (fs FileSet) ChangedPaths() []string {
	paths := make([]string, 0, len(fs.Files))
	for _, f := range fs.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Empty reports whether the diff contains no hunks at all.
func (fs FileSet) Empty() bool {
	for _, f := range fs.Files {
		if len(f.Hunks) > 0 {
			return false
		}
	}
	return true
}

// pathFromGitHeader extracts the b-side path from "diff --git a/x b/y".
func pathFromGitHeader(line string) string {
	if idx := strings.Index(line, " b/"); idx >= 0 {
		return strings.TrimSpace(line[idx+3:])
	}
	return ""
}

// parseHunkHeader parses "@@ -a,b +c,d @@ optional context".
func parseHunkHeader(line string) (Hunk, bool) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, false
	}
	hunk := Hunk{
		OldStart: atoiDefault(m[1], 0),
		OldLines: atoiDefault(m[2], 1),
		NewStart: atoiDefault(m[3], 0),
		NewLines: atoiDefault(m[4], 1),
	}
	return hunk, true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func intPtr(n int) *int {
	return &n
}
