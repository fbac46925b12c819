package generation

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("(?i)```[a-z]*\\n?")
	fenceClose = regexp.MustCompile("```$")
)

// ExtractCode strips markdown code fences, with or without a language tag,
// and surrounding whitespace. It is applied until the output stops changing,
// so ExtractCode(ExtractCode(s)) == ExtractCode(s).
func ExtractCode(raw string) string {
	out := raw
	for {
		next := fenceOpen.ReplaceAllString(out, "")
		next = fenceClose.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == out {
			return out
		}
		out = next
	}
}
