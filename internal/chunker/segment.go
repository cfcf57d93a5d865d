package chunker

import "strings"

// segment is one atomic unit produced by scanning the markdown: either a
// table block (never split across chunks) or a run of ordinary lines.
type segment struct {
	text     string
	isTable  bool
}

// isTableLine matches spec.md §4.2 step 2 exactly: a line opens a table
// segment when it begins with "|" and has another "|" after the first
// character.
func isTableLine(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	return strings.Index(line[1:], "|") >= 0
}

// segmentMarkdown scans line-by-line, grouping consecutive table lines into
// one atomic segment and everything else into ordinary text segments.
func segmentMarkdown(markdown string) []segment {
	lines := strings.Split(markdown, "\n")
	var out []segment
	var buf []string
	inTable := false

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.Join(buf, "\n")
		if strings.TrimSpace(text) != "" {
			out = append(out, segment{text: text, isTable: inTable})
		}
		buf = nil
	}

	for _, ln := range lines {
		table := isTableLine(ln)
		if table != inTable {
			flush()
			inTable = table
		}
		buf = append(buf, ln)
	}
	flush()
	return out
}
