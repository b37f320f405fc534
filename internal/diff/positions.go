package diff

// PositionSet maps (file path, new-side line number) to a diff position.
// It is built once per diff and read-only afterwards.
type PositionSet struct {
	byFile map[string]map[int]int
}

// Positions derives the addressable position map from a parsed diff.
// Only additions and context lines appear; removed lines consume a
// position but are not addressable by new-side line number.
func (fs FileSet) Positions() PositionSet {
	byFile := make(map[string]map[int]int, len(fs.Files))
	for _, file := range fs.Files {
		for _, hunk := range file.Hunks {
			for _, line := range hunk.Lines {
				if line.NewLine == nil {
					continue
				}
				m := byFile[file.Path]
				if m == nil {
					m = make(map[int]int)
					byFile[file.Path] = m
				}
				m[*line.NewLine] = line.Position
			}
		}
	}
	return PositionSet{byFile: byFile}
}

// Resolve returns the diff position for a file's new-side line number.
// ok is false when the line is not addressable: deleted lines, lines
// outside any hunk, or files absent from the diff.
func (ps PositionSet) Resolve(file string, line int) (int, bool) {
	if line <= 0 {
		return 0, false
	}
	m, found := ps.byFile[file]
	if !found {
		return 0, false
	}
	pos, found := m[line]
	return pos, found
}

// Empty reports whether no line in the diff is addressable.
func (ps PositionSet) Empty() bool {
	return len(ps.byFile) == 0
}

// Files returns the number of files with at least one addressable line.
func (ps PositionSet) Files() int {
	return len(ps.byFile)
}
