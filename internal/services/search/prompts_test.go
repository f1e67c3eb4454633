package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSynonyms(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		original string
		limit    int
		want     []string
	}{
		{"lowercases and trims", `"  Udon ", "SOBA"`, "ramen", 5, []string{"udon", "soba"}},
		{"drops original and duplicates", `"Ramen", "udon", "Udon", "soba"`, "ramen", 5, []string{"udon", "soba"}},
		{"caps at limit", `"a", "b", "c"`, "x", 2, []string{"a", "b"}},
		{"zero limit", `"a"`, "x", 0, nil},
		{"no quotes", "udon, soba", "ramen", 5, nil},
		{"skips empty names", `" ", "udon"`, "ramen", 5, []string{"udon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSynonyms(tt.reply, tt.original, tt.limit))
		})
	}
}

func TestParseRanking(t *testing.T) {
	tests := []struct {
		reply string
		count int
		want  int
	}{
		{"2", 3, 1},
		{"The best caption is 3.", 3, 2},
		{"none of them", 3, 0},
		{"7", 3, 0},
		{"0", 3, 0},
		{"1 or 2", 2, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRanking(tt.reply, tt.count), tt.reply)
	}
}

func TestRankingPrompt(t *testing.T) {
	got := rankingPrompt("Ramen Bar", []string{"a bowl", "a sign"})
	assert.Equal(t, "Which of these captions best describes \"Ramen Bar\"? '1. a bowl\n2. a sign'", got)
}
