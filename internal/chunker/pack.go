package chunker

import "strings"

// packSegments packs non-table segments into chunks bounded by chunkSize
// characters with chunkOverlap characters of overlap. A table segment always
// forms its own chunk regardless of size. A segment larger than chunkSize is
// force-split at paragraph boundaries, then hard-split if still oversized.
func packSegments(segments []segment, chunkSize, chunkOverlap int) []packedChunk {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	var out []packedChunk
	var buf strings.Builder
	hasTable := false

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			out = append(out, packedChunk{text: text, hasTable: hasTable})
		}
		buf.Reset()
		hasTable = false
	}

	for _, seg := range segments {
		if seg.isTable {
			flush()
			out = append(out, packedChunk{text: strings.TrimSpace(seg.text), hasTable: true})
			continue
		}

		for _, piece := range splitOversized(seg.text, chunkSize) {
			if buf.Len() > 0 && buf.Len()+len(piece)+1 > chunkSize {
				flush()
				if chunkOverlap > 0 && len(out) > 0 {
					tail := out[len(out)-1].text
					if len(tail) > chunkOverlap {
						tail = tail[len(tail)-chunkOverlap:]
					}
					buf.WriteString(tail)
					buf.WriteString("\n")
				}
			}
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(piece)
		}
	}
	flush()
	return out
}

type packedChunk struct {
	text     string
	hasTable bool
}

// splitOversized breaks text into pieces no larger than limit, first trying
// paragraph boundaries ("\n\n"), then hard character splitting.
func splitOversized(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	paras := strings.Split(text, "\n\n")
	var out []string
	for _, p := range paras {
		if len(p) <= limit {
			out = append(out, p)
			continue
		}
		out = append(out, hardSplit(p, limit)...)
	}
	return out
}

func hardSplit(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := limit
		if i := strings.LastIndex(text[:limit], " "); i > limit/2 {
			cut = i
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = text[cut:]
	}
	if strings.TrimSpace(text) != "" {
		out = append(out, strings.TrimSpace(text))
	}
	return out
}
