package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	synonymInstruction = "return each name in quotes, omit explanations"
	rankingInstruction = "only return the number of the best caption, omit explanations"
)

var (
	quotedRegex  = regexp.MustCompile(`"([^"]+)"`)
	integerRegex = regexp.MustCompile(`\d+`)
)

func synonymPrompt(dish string) string {
	return fmt.Sprintf(`Other names for this meal: "%s"`, dish)
}

func rankingPrompt(name string, captions []string) string {
	lines := make([]string, len(captions))
	for i, caption := range captions {
		lines[i] = fmt.Sprintf("%d. %s", i+1, caption)
	}
	return fmt.Sprintf(`Which of these captions best describes "%s"? '%s'`, name, strings.Join(lines, "\n"))
}

// ParseSynonyms extracts the quoted names from reply. Names are lowercased and
// trimmed. The original dish, empty names and duplicates are dropped, first-seen
// order is kept and at most limit names are returned.
func ParseSynonyms(reply, original string, limit int) []string {
	original = strings.ToLower(strings.TrimSpace(original))
	seen := map[string]struct{}{original: {}}

	var out []string
	for _, match := range quotedRegex.FindAllStringSubmatch(reply, -1) {
		if limit >= 0 && len(out) >= limit {
			break
		}
		name := strings.ToLower(strings.TrimSpace(match[1]))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ParseRanking returns the 0-based caption index chosen in reply.
// The first integer is read as a 1-based index. A reply without an integer,
// or with an index outside [1, count], selects the first caption.
func ParseRanking(reply string, count int) int {
	match := integerRegex.FindString(reply)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil || n < 1 || n > count {
		return 0
	}
	return n - 1
}
