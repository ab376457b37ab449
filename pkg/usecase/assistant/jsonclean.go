package assistant

import (
	"regexp"
	"strings"
)

var (
	fenceOpenRe  = regexp.MustCompile("(?i)^```(?:json)?[\r\n]*")
	fenceCloseRe = regexp.MustCompile("```[\r\n]*$")
)

// stripCodeFence removes a markdown code-fence wrapper the model sometimes
// adds despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// truncateAfterJSON drops any trailing commentary after the last closing
// brace.
func truncateAfterJSON(s string) string {
	if end := strings.LastIndex(s, "}"); end != -1 {
		return s[:end+1]
	}
	return s
}

// cleanModelJSON applies both cleanups in order.
func cleanModelJSON(s string) string {
	return truncateAfterJSON(stripCodeFence(s))
}
