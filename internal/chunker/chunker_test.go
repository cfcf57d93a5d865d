package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTableLine(t *testing.T) {
	assert.True(t, isTableLine("| a | b |"))
	assert.False(t, isTableLine("a | b"))
	assert.False(t, isTableLine("|"))
	assert.True(t, isTableLine("|x|"))
}

func TestSegmentMarkdownKeepsTableAtomic(t *testing.T) {
	md := "intro line\n\n| h1 | h2 |\n| -- | -- |\n| v1 | v2 |\n\nafter table"
	segs := segmentMarkdown(md)
	require.Len(t, segs, 3)
	assert.False(t, segs[0].isTable)
	assert.True(t, segs[1].isTable)
	assert.Contains(t, segs[1].text, "| h1 | h2 |")
	assert.False(t, segs[2].isTable)
}

func TestPackSegmentsTableAlwaysOwnChunk(t *testing.T) {
	segs := []segment{
		{text: "short para", isTable: false},
		{text: "| a | b | c |", isTable: true},
		{text: "more text", isTable: false},
	}
	packed := packSegments(segs, 1500, 100)
	require.Len(t, packed, 3)
	assert.True(t, packed[1].hasTable)
	assert.Equal(t, "| a | b | c |", packed[1].text)
}

func TestPackSegmentsForceSplitsOversized(t *testing.T) {
	var long strings.Builder
	for i := 0; i < 500; i++ {
		long.WriteString("word ")
	}
	segs := []segment{{text: long.String(), isTable: false}}
	packed := packSegments(segs, 200, 20)
	require.Greater(t, len(packed), 1)
	for _, p := range packed {
		assert.False(t, p.hasTable)
		assert.LessOrEqual(t, len(p.text), 260)
	}
}

func TestReconstructMarkdownDetectsHeadingsAndTables(t *testing.T) {
	text := "REVENUE SUMMARY\nRegion      Q1 Sales      Q2 Sales\nEast        100           120\nplain paragraph text"
	md := reconstructMarkdown(text)
	lines := strings.Split(md, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "## "))
	assert.True(t, strings.HasPrefix(lines[1], "|"))
	assert.True(t, strings.HasPrefix(lines[2], "|"))
	assert.Equal(t, "plain paragraph text", lines[3])
}

func TestHardSplitRespectsLimit(t *testing.T) {
	text := strings.Repeat("a", 50) + " " + strings.Repeat("b", 50) + " " + strings.Repeat("c", 50)
	pieces := hardSplit(text, 60)
	for _, p := range pieces {
		assert.LessOrEqual(t, len(p), 60)
	}
	assert.Equal(t, text, strings.Join(pieces, " "))
}
